// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	log "github.com/sirupsen/logrus"
)

// Dialect is the SQL flavour of a database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

var schemas = map[Dialect]string{
	SQLite: `
	CREATE TABLE IF NOT EXISTS anisa_cultural_contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		region TEXT NOT NULL,
		variant TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		cultural_markers TEXT NOT NULL DEFAULT '[]',
		trade_context TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contexts_region_variant ON anisa_cultural_contexts(region, variant);
	CREATE INDEX IF NOT EXISTS idx_contexts_created_at ON anisa_cultural_contexts(created_at);

	CREATE TABLE IF NOT EXISTS anisa_cultural_insights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		context_id INTEGER REFERENCES anisa_cultural_contexts(id),
		event_type TEXT NOT NULL,
		cultural_factors TEXT NOT NULL DEFAULT '{}',
		recommendations TEXT NOT NULL DEFAULT '[]',
		trade_implications TEXT NOT NULL DEFAULT '{}',
		risk_factors TEXT NOT NULL DEFAULT '[]',
		authenticity_score REAL NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_context_id ON anisa_cultural_insights(context_id);
	CREATE INDEX IF NOT EXISTS idx_insights_event_type ON anisa_cultural_insights(event_type);

	CREATE TABLE IF NOT EXISTS anisa_cultural_verifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		panx_event_id TEXT,
		lot_id TEXT,
		validators TEXT NOT NULL DEFAULT '[]',
		cultural_weights TEXT NOT NULL DEFAULT '{}',
		consensus_adjustment REAL NOT NULL DEFAULT 1.0,
		verification_status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verifications_lot_id ON anisa_cultural_verifications(lot_id);

	CREATE TABLE IF NOT EXISTS anisa_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		response_time_ms REAL NOT NULL,
		region TEXT,
		variant TEXT,
		authenticity_score REAL,
		panx_integrated INTEGER NOT NULL DEFAULT 0,
		cortex_forwarded INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_endpoint_timestamp ON anisa_metrics(endpoint, timestamp);
	`,
	Postgres: `
	CREATE TABLE IF NOT EXISTS anisa_cultural_contexts (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL,
		language VARCHAR(10) NOT NULL DEFAULT 'en',
		region VARCHAR(50) NOT NULL,
		variant VARCHAR(50) NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL,
		cultural_markers JSONB NOT NULL DEFAULT '[]',
		trade_context VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contexts_region_variant ON anisa_cultural_contexts(region, variant);
	CREATE INDEX IF NOT EXISTS idx_contexts_created_at ON anisa_cultural_contexts(created_at);

	CREATE TABLE IF NOT EXISTS anisa_cultural_insights (
		id BIGSERIAL PRIMARY KEY,
		context_id BIGINT REFERENCES anisa_cultural_contexts(id),
		event_type VARCHAR(50) NOT NULL,
		cultural_factors JSONB NOT NULL DEFAULT '{}',
		recommendations JSONB NOT NULL DEFAULT '[]',
		trade_implications JSONB NOT NULL DEFAULT '{}',
		risk_factors JSONB NOT NULL DEFAULT '[]',
		authenticity_score DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_context_id ON anisa_cultural_insights(context_id);
	CREATE INDEX IF NOT EXISTS idx_insights_event_type ON anisa_cultural_insights(event_type);

	CREATE TABLE IF NOT EXISTS anisa_cultural_verifications (
		id BIGSERIAL PRIMARY KEY,
		panx_event_id VARCHAR(100),
		lot_id VARCHAR(100),
		validators JSONB NOT NULL DEFAULT '[]',
		cultural_weights JSONB NOT NULL DEFAULT '{}',
		consensus_adjustment DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		verification_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verifications_lot_id ON anisa_cultural_verifications(lot_id);

	CREATE TABLE IF NOT EXISTS anisa_metrics (
		id BIGSERIAL PRIMARY KEY,
		endpoint VARCHAR(100) NOT NULL,
		method VARCHAR(10) NOT NULL,
		status_code INTEGER NOT NULL,
		response_time_ms DOUBLE PRECISION NOT NULL,
		region VARCHAR(50),
		variant VARCHAR(50),
		authenticity_score DOUBLE PRECISION,
		panx_integrated BOOLEAN NOT NULL DEFAULT FALSE,
		cortex_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
		timestamp TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_endpoint_timestamp ON anisa_metrics(endpoint, timestamp);
	`,
}

const (
	insertContext = `INSERT INTO anisa_cultural_contexts
		(text, language, region, variant, confidence_score, cultural_markers, trade_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	insertInsight = `INSERT INTO anisa_cultural_insights
		(context_id, event_type, cultural_factors, recommendations, trade_implications, risk_factors,
		authenticity_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	insertVerification = `INSERT INTO anisa_cultural_verifications
		(panx_event_id, lot_id, validators, cultural_weights, consensus_adjustment, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	insertMetric = `INSERT INTO anisa_metrics
		(endpoint, method, status_code, response_time_ms, region, variant, authenticity_score,
		panx_integrated, cortex_forwarded, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// SQLStore is a Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database described by cfg and creates the schema.
// It returns Nop for the "none" driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		driver  string
		dialect Dialect
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		driver, dialect = "sqlite3", SQLite
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case config.DriverPostgres:
		driver, dialect = "pgx", Postgres
	default:
		return Nop{}, nil
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("storage initialized (driver: %s, dsn: %s)", cfg.Driver, config.RedactDSN(cfg.DSN))
	return s, nil
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Migrate creates the tables and indexes when they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema, ok := schemas[s.dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", s.dialect)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) flag(v bool) any {
	if s.dialect == SQLite {
		if v {
			return 1
		}
		return 0
	}
	return v
}

func jsonText(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// SaveContext stores rec and returns its id.
func (s *SQLStore) SaveContext(ctx context.Context, rec *ContextRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("record cannot be nil")
	}
	rec.CreatedAt = stamp(rec.CreatedAt)
	err := s.db.QueryRowContext(ctx, s.rebind(insertContext),
		rec.Text,
		rec.Language,
		rec.Region,
		rec.Variant,
		rec.ConfidenceScore,
		jsonText(rec.CulturalMarkers, "[]"),
		rec.TradeContext,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cultural context: %w", err)
	}
	return rec.ID, nil
}

// SaveInsight stores rec and returns its id. A zero ContextID is stored as
// NULL.
func (s *SQLStore) SaveInsight(ctx context.Context, rec *InsightRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("record cannot be nil")
	}
	rec.CreatedAt = stamp(rec.CreatedAt)
	var contextID sql.NullInt64
	if rec.ContextID > 0 {
		contextID = sql.NullInt64{Int64: rec.ContextID, Valid: true}
	}
	eventType := rec.EventType
	if eventType == "" {
		eventType = "general"
	}
	err := s.db.QueryRowContext(ctx, s.rebind(insertInsight),
		contextID,
		eventType,
		jsonText(rec.CulturalFactors, "{}"),
		jsonText(rec.Recommendations, "[]"),
		jsonText(rec.TradeImplications, "{}"),
		jsonText(rec.RiskFactors, "[]"),
		rec.AuthenticityScore,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cultural insight: %w", err)
	}
	return rec.ID, nil
}

// SaveVerification stores rec and returns its id.
func (s *SQLStore) SaveVerification(ctx context.Context, rec *VerificationRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("record cannot be nil")
	}
	rec.CreatedAt = stamp(rec.CreatedAt)
	err := s.db.QueryRowContext(ctx, s.rebind(insertVerification),
		rec.PanxEventID,
		rec.LotID,
		jsonText(rec.Validators, "[]"),
		jsonText(rec.CulturalWeights, "{}"),
		rec.ConsensusAdjustment,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cultural verification: %w", err)
	}
	return rec.ID, nil
}

// SaveMetric stores rec.
func (s *SQLStore) SaveMetric(ctx context.Context, rec *MetricRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(insertMetric),
		rec.Endpoint,
		rec.Method,
		rec.StatusCode,
		rec.ResponseTimeMs,
		rec.Region,
		rec.Variant,
		rec.AuthenticityScore,
		s.flag(rec.PanxIntegrated),
		s.flag(rec.CortexForwarded),
		stamp(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }
