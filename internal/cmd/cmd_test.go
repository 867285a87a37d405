package cmd

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = config.DriverNone
	cfg.Storage.DSN = ""
	cfg.Host = "127.0.0.1"
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestClassify(t *testing.T) {
	var buf bytes.Buffer
	err := Classify(context.Background(), testConfig(t), pipeline.Request{
		Text: "The community village elders want harmony in this trade",
	}, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, gjson.Valid(out))
	assert.NotEmpty(t, gjson.Get(out, "response.response_text").String())
	assert.NotEmpty(t, gjson.Get(out, "cultural_context.variant").String())
	assert.False(t, gjson.Get(out, "degraded").Bool())
}

func TestClassify_RequiresText(t *testing.T) {
	var buf bytes.Buffer
	err := Classify(context.Background(), testConfig(t), pipeline.Request{Text: "   "}, &buf)
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestValidateLexicon(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ValidateLexicon("", &buf))
	assert.Contains(t, buf.String(), "lexicon embedded")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("variants: [unterminated"), 0o600))
	assert.Error(t, ValidateLexicon(bad, &buf))

	assert.Error(t, ValidateLexicon(filepath.Join(t.TempDir(), "missing.yaml"), &buf))
}

func TestValidateRules(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ValidateRules("", &buf))
	assert.Equal(t, "assessment rules embedded: ok\n", buf.String())

	bad := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("validators:\n  - name: broken\n    when: \"EventType ==\"\n"), 0o600))
	assert.Error(t, ValidateRules(bad, &buf))
}

func TestNewService_BadLexicon(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.LexiconPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewService(context.Background(), cfg)
	assert.Error(t, err)
}

const twoVariantLexicon = `
variants:
  - name: ubuntu
    region: west_africa
    keywords: [community]
  - name: guanxi
    region: east_asia
    keywords: [guanxi]
regions:
  - name: west_africa
    keywords: [accra]
  - name: east_asia
    keywords: [beijing]
trade-contexts:
  - name: compliance
    keywords: [permit]
`

func TestNewService_ReportsLexiconReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoVariantLexicon), 0o600))
	cfg := testConfig(t)
	cfg.Engine.LexiconPath = path

	svc, err := NewService(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	scrape := func() string {
		rec := httptest.NewRecorder()
		svc.collectors.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		return rec.Body.String()
	}
	assert.Contains(t, scrape(), "anisa_lexicon_variants 2")
	assert.Contains(t, scrape(), "anisa_lexicon_reloads_total 0")

	trimmed := strings.Replace(twoVariantLexicon, "  - name: guanxi\n    region: east_asia\n    keywords: [guanxi]\n", "", 1)
	require.NoError(t, os.WriteFile(path, []byte(trimmed), 0o600))
	require.NoError(t, svc.lexicon.Reload())

	body := scrape()
	assert.Contains(t, body, "anisa_lexicon_reloads_total 1")
	assert.Contains(t, body, "anisa_lexicon_variants 1")
}

func TestService_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Port = freePort(t)

	svc, err := NewService(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}

	// A second shutdown is a no-op.
	assert.NoError(t, svc.Shutdown(context.Background()))
}
