package store

import (
	"context"
	"time"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/worker"
)

// Recorder writes records in the background so that callers never wait on
// the database. Records that do not fit in the queue are dropped.
type Recorder struct {
	store      Store
	archive    *Archive
	queue      *worker.Queue
	collectors *metrics.Collectors
}

// NewRecorder starts a Recorder over st. archive and col may be nil.
func NewRecorder(st Store, archive *Archive, col *metrics.Collectors, queueSize int, writeTimeout time.Duration) *Recorder {
	if st == nil {
		st = Nop{}
	}
	return &Recorder{
		store:      st,
		archive:    archive,
		queue:      worker.NewQueue("storage", queueSize, writeTimeout),
		collectors: col,
	}
}

func (r *Recorder) submit(name string, job worker.Job) {
	if !r.queue.Submit(name, func(ctx context.Context) error {
		err := job(ctx)
		if err != nil {
			r.collectors.ObservePersist("error")
		} else {
			r.collectors.ObservePersist("ok")
		}
		return err
	}) {
		r.collectors.ObservePersist("dropped")
	}
}

// RecordAnalysis stores rec, then insight keyed by the new context id, and,
// when archiving is on, uploads payload under analysisID. insight may be nil.
func (r *Recorder) RecordAnalysis(rec *ContextRecord, insight *InsightRecord, analysisID string, payload any) {
	r.submit("analysis", func(ctx context.Context) error {
		id, err := r.store.SaveContext(ctx, rec)
		if err != nil {
			return err
		}
		if insight != nil {
			insight.ContextID = id
			if insight.CreatedAt.IsZero() {
				insight.CreatedAt = rec.CreatedAt
			}
			if _, err := r.store.SaveInsight(ctx, insight); err != nil {
				return err
			}
		}
		if r.archive != nil && payload != nil {
			return r.archive.Put(ctx, analysisID, rec.CreatedAt, payload)
		}
		return nil
	})
}

// RecordVerification stores rec.
func (r *Recorder) RecordVerification(rec *VerificationRecord) {
	r.submit("verification", func(ctx context.Context) error {
		_, err := r.store.SaveVerification(ctx, rec)
		return err
	})
}

// RecordMetric stores rec.
func (r *Recorder) RecordMetric(rec *MetricRecord) {
	r.submit("metric", func(ctx context.Context) error {
		return r.store.SaveMetric(ctx, rec)
	})
}

// Stats reports the queue counters.
func (r *Recorder) Stats() worker.Stats { return r.queue.Stats() }

// Ping checks the backing store.
func (r *Recorder) Ping(ctx context.Context) error { return r.store.Ping(ctx) }

// Close drains pending writes and closes the store.
func (r *Recorder) Close(ctx context.Context) error {
	err := r.queue.Close(ctx)
	if cerr := r.store.Close(); err == nil {
		err = cerr
	}
	return err
}
