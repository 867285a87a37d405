// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store persists analyses and their insights, consensus weightings
// and request metrics.
// Persistence is best-effort: nothing here sits on the request path.
package store

import (
	"context"
	"time"
)

// ContextRecord is one analyzed text.
type ContextRecord struct {
	ID              int64     `json:"id"`
	Text            string    `json:"text"`
	Language        string    `json:"language"`
	Region          string    `json:"region"`
	Variant         string    `json:"variant"`
	ConfidenceScore float64   `json:"confidence_score"`
	CulturalMarkers []string  `json:"cultural_markers"`
	TradeContext    string    `json:"trade_context"`
	CreatedAt       time.Time `json:"created_at"`
}

// InsightRecord is the cultural reading stored next to an analyzed text.
// ContextID is filled in once the context row exists.
type InsightRecord struct {
	ID                int64          `json:"id"`
	ContextID         int64          `json:"context_id"`
	EventType         string         `json:"event_type"`
	CulturalFactors   map[string]any `json:"cultural_factors"`
	Recommendations   []string       `json:"recommendations"`
	TradeImplications map[string]any `json:"trade_implications"`
	RiskFactors       []string       `json:"risk_factors"`
	AuthenticityScore float64        `json:"authenticity_score"`
	CreatedAt         time.Time      `json:"created_at"`
}

// VerificationRecord is one cultural weighting handed to PANX.
type VerificationRecord struct {
	ID                  int64              `json:"id"`
	PanxEventID         string             `json:"panx_event_id"`
	LotID               string             `json:"lot_id"`
	Validators          []string           `json:"validators"`
	CulturalWeights     map[string]float64 `json:"cultural_weights"`
	ConsensusAdjustment float64            `json:"consensus_adjustment"`
	CreatedAt           time.Time          `json:"created_at"`
}

// MetricRecord is one served request.
type MetricRecord struct {
	Endpoint          string    `json:"endpoint"`
	Method            string    `json:"method"`
	StatusCode        int       `json:"status_code"`
	ResponseTimeMs    float64   `json:"response_time_ms"`
	Region            string    `json:"region,omitempty"`
	Variant           string    `json:"variant,omitempty"`
	AuthenticityScore float64   `json:"authenticity_score,omitempty"`
	PanxIntegrated    bool      `json:"panx_integrated"`
	CortexForwarded   bool      `json:"cortex_forwarded"`
	Timestamp         time.Time `json:"timestamp"`
}

// Store is a persistence backend.
type Store interface {
	SaveContext(ctx context.Context, rec *ContextRecord) (int64, error)
	SaveInsight(ctx context.Context, rec *InsightRecord) (int64, error)
	SaveVerification(ctx context.Context, rec *VerificationRecord) (int64, error)
	SaveMetric(ctx context.Context, rec *MetricRecord) error
	Ping(ctx context.Context) error
	Close() error
}

// Nop discards everything. It backs the "none" driver.
type Nop struct{}

func (Nop) SaveContext(context.Context, *ContextRecord) (int64, error)           { return 0, nil }
func (Nop) SaveInsight(context.Context, *InsightRecord) (int64, error)           { return 0, nil }
func (Nop) SaveVerification(context.Context, *VerificationRecord) (int64, error) { return 0, nil }
func (Nop) SaveMetric(context.Context, *MetricRecord) error                      { return nil }
func (Nop) Ping(context.Context) error                                           { return nil }
func (Nop) Close() error                                                         { return nil }
