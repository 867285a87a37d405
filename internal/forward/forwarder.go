// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package forward ships analysis events to the Cortex analytics service.
// Delivery is best-effort: failures are retried with backoff, then logged and
// dropped.
package forward

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/buildinfo"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/worker"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// IngestPath is appended to the Cortex base URL.
const IngestPath = "/cortex/ingest"

// Source is stamped on forwarded events that do not name one.
const Source = "anisa"

// ErrNotObject is returned for raw events that are not JSON objects.
var ErrNotObject = errors.New("event must be a JSON object")

// Delivery outcomes.
const (
	StatusForwarded = "forwarded"
	StatusFailed    = "failed"
	StatusDisabled  = "disabled"
)

// Outcome describes one delivery.
type Outcome struct {
	Status         string          `json:"status"`
	CortexResponse json.RawMessage `json:"cortex_response,omitempty"`
	Error          string          `json:"error,omitempty"`
	Attempts       int             `json:"attempts"`
}

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Forwarder posts events to Cortex.
type Forwarder struct {
	cfg        config.CortexConfig
	client     *http.Client
	queue      *worker.Queue
	collectors *metrics.Collectors

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Forwarder. When forwarding is disabled every call reports
// StatusDisabled and nothing is sent. col may be nil.
func New(cfg config.CortexConfig, col *metrics.Collectors) *Forwarder {
	f := &Forwarder{
		cfg:        cfg,
		client:     &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		collectors: col,
		now:        time.Now,
		sleep:      sleepContext,
	}
	if cfg.Enabled {
		// The whole retry budget has to fit in one queued job.
		f.queue = worker.NewQueue("cortex", cfg.QueueSize, 0)
	}
	return f
}

// Enabled reports whether events are sent anywhere.
func (f *Forwarder) Enabled() bool { return f.cfg.Enabled && f.cfg.URL != "" }

// Forward queues event for delivery and returns immediately.
func (f *Forwarder) Forward(event any) {
	if !f.Enabled() {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		log.Warnf("cortex: failed to encode event: %v", err)
		return
	}
	if !f.queue.Submit("forward", func(ctx context.Context) error {
		out := f.deliver(ctx, raw)
		if out.Status != StatusForwarded {
			return errors.New(out.Error)
		}
		return nil
	}) {
		f.collectors.ObserveForward("dropped")
	}
}

// ForwardRaw stamps a caller-supplied JSON object and delivers it
// synchronously.
func (f *Forwarder) ForwardRaw(ctx context.Context, raw []byte) (Outcome, error) {
	stamped, err := Stamp(raw, f.now())
	if err != nil {
		return Outcome{}, err
	}
	if !f.Enabled() {
		return Outcome{Status: StatusDisabled}, nil
	}
	return f.deliver(ctx, stamped), nil
}

// Stamp sets "received_at" on a JSON object, and "source" when it has none.
func Stamp(raw []byte, at time.Time) ([]byte, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, ErrNotObject
	}
	var err error
	if !gjson.GetBytes(raw, "source").Exists() {
		if raw, err = sjson.SetBytes(raw, "source", Source); err != nil {
			return nil, err
		}
	}
	return sjson.SetBytes(raw, "received_at", at.UTC().Format(time.RFC3339Nano))
}

// Backoff returns the wait before retry n (1-based): the initial backoff
// doubled n-1 times, capped at the maximum.
func (f *Forwarder) Backoff(n int) time.Duration {
	d := time.Duration(f.cfg.InitialBackoffMs) * time.Millisecond
	limit := time.Duration(f.cfg.MaxBackoffMs) * time.Millisecond
	for i := 1; i < n && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (f *Forwarder) deliver(ctx context.Context, event []byte) Outcome {
	body, err := json.Marshal(map[string][]json.RawMessage{"events": {event}})
	if err != nil {
		return Outcome{Status: StatusFailed, Error: err.Error()}
	}

	attempts := max(f.cfg.MaxAttempts, 1)
	var (
		lastErr error
		made    int
	)
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			if err := f.sleep(ctx, f.Backoff(i-1)); err != nil {
				lastErr = err
				break
			}
		}
		made = i
		reply, err := f.post(ctx, body)
		if err == nil {
			f.collectors.ObserveForward("ok")
			return Outcome{Status: StatusForwarded, CortexResponse: reply, Attempts: i}
		}
		lastErr = err
		log.Warnf("cortex: attempt %d/%d failed: %v", i, attempts, err)
		var perm permanentError
		if errors.As(err, &perm) {
			break
		}
	}

	f.collectors.ObserveForward("failed")
	log.Errorf("cortex: giving up on event: %v", lastErr)
	return Outcome{Status: StatusFailed, Error: lastErr.Error(), Attempts: made}
}

func (f *Forwarder) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	if f.cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(f.cfg.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	url := strings.TrimRight(f.cfg.URL, "/") + IngestPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, permanentError{err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "anisa/"+buildinfo.Version)
	if f.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", f.cfg.APIKey)
	}
	if f.cfg.SigningSecret != "" {
		req.Header.Set("X-Signature", "sha256="+Sign(f.cfg.SigningSecret, body))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, permanentError{fmt.Errorf("status %d: %s", resp.StatusCode, gjson.GetBytes(reply, "detail").String())}
	}

	if !gjson.ValidBytes(reply) {
		quoted, _ := json.Marshal(string(reply))
		return quoted, nil
	}
	if n := gjson.GetBytes(reply, "accepted"); n.Exists() {
		log.Debugf("cortex: %d events accepted", n.Int())
	}
	return json.RawMessage(reply), nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Stats reports the delivery queue counters.
func (f *Forwarder) Stats() worker.Stats {
	if f.queue == nil {
		return worker.Stats{}
	}
	return f.queue.Stats()
}

// Close waits for queued deliveries and releases idle connections.
func (f *Forwarder) Close(ctx context.Context) error {
	var err error
	if f.queue != nil {
		err = f.queue.Close(ctx)
	}
	f.client.CloseIdleConnections()
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
