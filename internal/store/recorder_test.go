package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/klauspost/compress/gzip"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	Nop
	mu       sync.Mutex
	contexts []*ContextRecord
	insights []*InsightRecord
	metrics  []*MetricRecord
	fail     error
	closed   bool
}

func (m *memStore) SaveContext(_ context.Context, rec *ContextRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	m.contexts = append(m.contexts, rec)
	return int64(len(m.contexts)), nil
}

func (m *memStore) SaveInsight(_ context.Context, rec *InsightRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, rec)
	return int64(len(m.insights)), nil
}

func (m *memStore) SaveMetric(_ context.Context, rec *MetricRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, rec)
	return nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

type fakePutter struct {
	bucket, key string
	body        []byte
	opts        minio.PutObjectOptions
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(body)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.bucket, f.key, f.body, f.opts = bucket, key, body, opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestArchive_Key(t *testing.T) {
	at := time.Date(2026, 2, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "analyses/2026/02/09/abc.json.gz", (&Archive{prefix: "analyses"}).Key("abc", at))
	assert.Equal(t, "2026/02/09/abc.json.gz", (&Archive{}).Key("abc", at))
}

func TestArchive_Put(t *testing.T) {
	p := &fakePutter{}
	a := &Archive{client: p, bucket: "anisa", prefix: "analyses"}
	at := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, a.Put(context.Background(), "abc", at, map[string]string{"variant": "ubuntu"}))
	assert.Equal(t, "anisa", p.bucket)
	assert.Equal(t, "analyses/2026/02/09/abc.json.gz", p.key)
	assert.Equal(t, "gzip", p.opts.ContentEncoding)

	zr, err := gzip.NewReader(bytes.NewReader(p.body))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "ubuntu", got["variant"])
}

func TestRecorder_WritesInBackground(t *testing.T) {
	st := &memStore{}
	p := &fakePutter{}
	col := metrics.NewCollectors()
	r := NewRecorder(st, &Archive{client: p, bucket: "anisa"}, col, 8, time.Second)

	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	r.RecordAnalysis(&ContextRecord{Text: "hello", CreatedAt: at}, nil, "id-1", map[string]int{"n": 1})
	r.RecordMetric(&MetricRecord{Endpoint: "/health"})
	require.NoError(t, r.Close(context.Background()))

	assert.Len(t, st.contexts, 1)
	assert.Len(t, st.metrics, 1)
	assert.True(t, st.closed)
	assert.Equal(t, "2026/01/02/id-1.json.gz", p.key)
	assert.Equal(t, int64(2), r.Stats().Completed)
	series, err := testutil.GatherAndCount(col.Registry, "anisa_persist_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series, "only the ok outcome was observed")
}

func TestRecorder_Failure(t *testing.T) {
	st := &memStore{fail: errors.New("disk full")}
	r := NewRecorder(st, nil, nil, 8, time.Second)

	r.RecordAnalysis(&ContextRecord{Text: "x"}, &InsightRecord{EventType: "general"}, "id", nil)
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, int64(1), r.Stats().Failed)
	assert.Empty(t, st.insights)
}

func TestRecorder_StoresInsightUnderContext(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, nil, nil, 8, time.Second)
	at := time.Date(2026, 4, 9, 8, 0, 0, 0, time.UTC)

	st.contexts = append(st.contexts, &ContextRecord{Text: "earlier"})
	r.RecordAnalysis(&ContextRecord{Text: "community approval", CreatedAt: at}, &InsightRecord{
		EventType:         "compliance",
		Recommendations:   []string{"Review Delay risk: delay"},
		RiskFactors:       []string{"Delay risk: delay"},
		AuthenticityScore: 0.9,
	}, "id-2", nil)
	require.NoError(t, r.Close(context.Background()))

	require.Len(t, st.insights, 1)
	got := st.insights[0]
	assert.Equal(t, int64(2), got.ContextID)
	assert.Equal(t, at, got.CreatedAt)
	assert.Equal(t, "compliance", got.EventType)
	assert.Equal(t, int64(1), r.Stats().Completed)
}
