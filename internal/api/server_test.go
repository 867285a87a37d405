// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/assessment"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/forward"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fixedRand struct{}

func (fixedRand) Intn(int) int { return 0 }

type testEnv struct {
	server    *Server
	forwarder *forward.Forwarder
	recorder  *store.Recorder
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Debug = true
	if mutate != nil {
		mutate(cfg)
	}

	lex := lexicon.NewStore(lexicon.Default())
	col := metrics.NewCollectors()
	rec := store.NewRecorder(store.Nop{}, nil, col, 16, time.Second)
	fwd := forward.New(cfg.Cortex, col)
	t.Cleanup(func() {
		_ = rec.Close(context.Background())
		_ = fwd.Close(context.Background())
	})

	s := NewServer(Deps{
		Config:     cfg,
		Engine:     pipeline.FromConfig(cfg, lex, metrics.New(100), col, fixedRand{}),
		Assessor:   assessment.NewAssessor(nil, lex),
		Recorder:   rec,
		Forwarder:  fwd,
		Collectors: col,
	})
	return &testEnv{server: s, forwarder: fwd, recorder: rec}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestRootAndHealth(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operational", gjson.Get(w.Body.String(), "status").String())

	w = env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", gjson.Get(w.Body.String(), "status").String())
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = env.do(http.MethodGet, "/health", "", headerRequestID, "req-123")
	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))
}

func TestQuery(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(http.MethodPost, "/api/v1/query", `{"text":"We need community approval and village harmony for this decision"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Equal(t, "ubuntu", gjson.Get(body, "cultural_variant").String())
	assert.Equal(t, "west_africa", gjson.Get(body, "cultural_context.region").String())
	assert.True(t, gjson.Get(body, "is_authentic").Bool())
	assert.GreaterOrEqual(t, gjson.Get(body, "authenticity_score").Float(), 0.7)
	assert.Equal(t, []any{"community", "village", "harmony"}, gjson.Get(body, "cultural_markers_used").Value())

	assert.Equal(t, "west_africa", w.Header().Get("X-ANISA-Region"))
	assert.Equal(t, "ubuntu", w.Header().Get("X-ANISA-Variant"))
	assert.Regexp(t, `^[01]\.\d\d$`, w.Header().Get("X-ANISA-Authenticity"))
}

func TestQuery_Validation(t *testing.T) {
	env := newTestServer(t, nil)

	for name, body := range map[string]string{
		"empty text":  `{"text":""}`,
		"too long":    `{"text":"` + strings.Repeat("a", 1001) + `"}`,
		"not json":    `{"text":`,
		"no text key": `{"language":"en"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/query", body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		})
	}

	// 1000 multi-byte characters are within the limit.
	w := env.do(http.MethodPost, "/api/v1/query", `{"text":"`+strings.Repeat("é", 1000)+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKey(t *testing.T) {
	env := newTestServer(t, func(cfg *config.Config) { cfg.APIKey = "secret" })

	w := env.do(http.MethodGet, "/api/v1/variants", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/variants", "", headerAPIKey, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/variants", "", headerAPIKey, "secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, gjson.Get(w.Body.String(), "#.value").Array(), 7)

	// Health stays public.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "").Code)
}

func TestCORS(t *testing.T) {
	env := newTestServer(t, func(cfg *config.Config) { cfg.CORSOrigins = []string{"https://app.gtcx.example"} })

	w := env.do(http.MethodOptions, "/api/v1/query", "", "Origin", "https://app.gtcx.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.gtcx.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = env.do(http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInsights(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(http.MethodPost, "/api/v1/insights", `{"topic":"trust and long-term relationship"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "guanxi", gjson.Get(body, "cultural_variant").String())
	assert.Equal(t, "Cultural perspective on trust and long-term relationship", gjson.Get(body, "insights.0").String())
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(http.MethodPost, "/api/v1/query", `{"text":"community"}`)
	env.do(http.MethodPost, "/api/v1/query", `{"text":"guanxi"}`)

	w := env.do(http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "total_queries").Int())
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "by_variant.guanxi").Int())

	w = env.do(http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operational", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, 1.0, gjson.Get(w.Body.String(), "success_rate").Float())
	assert.Equal(t, "embedded", gjson.Get(w.Body.String(), "lexicon.source").String())

	w = env.do(http.MethodPost, "/api/v1/metrics/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/api/v1/metrics", "")
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "total_queries").Int())

	w = env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anisa_requests_total")
	assert.Contains(t, w.Body.String(), `anisa_cultural_analysis_total{region="west_africa",variant="ubuntu"} 1`)
}

func TestNewServer_WithoutOptionalServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.Debug = true
	lex := lexicon.NewStore(lexicon.Default())

	var s *Server
	require.NotPanics(t, func() {
		s = NewServer(Deps{
			Config:   cfg,
			Engine:   pipeline.FromConfig(cfg, lex, metrics.New(10), nil, fixedRand{}),
			Assessor: assessment.NewAssessor(nil, lex),
		})
	})
	env := &testEnv{server: s}

	w := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "anisa_requests_total")

	w = env.do(http.MethodPost, "/api/v1/query", `{"text":"community"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegionsAndToolDescriptor(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(http.MethodGet, "/api/v1/regions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ubuntu", gjson.Get(w.Body.String(), `#(value=="west_africa").variant`).String())

	w = env.do(http.MethodGet, "/api/v1/tool/describe", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"query", "analyze", "event_assess"}, gjson.Get(w.Body.String(), "functions.#.name").Value())
}

func TestDemo(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(http.MethodPost, "/api/v1/demo", "")
	require.Equal(t, http.StatusOK, w.Code)

	results := gjson.Get(w.Body.String(), "results").Array()
	require.Len(t, results, 5)
	for _, r := range results {
		assert.LessOrEqual(t, len([]rune(r.Get("response").String())), 103)
	}
}

func TestServe_Stop(t *testing.T) {
	env := newTestServer(t, func(cfg *config.Config) { cfg.MaxConcurrentRequests = 2 })
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var serveErr error
	go func() {
		defer wg.Done()
		serveErr = env.server.Serve(ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.server.Stop(ctx))
	wg.Wait()
	assert.NoError(t, serveErr)
}
