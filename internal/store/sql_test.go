// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	assert.Equal(t, "VALUES ($1, $2, $3)", pg.rebind("VALUES (?, ?, ?)"))

	lite := New(nil, SQLite)
	assert.Equal(t, "VALUES (?, ?)", lite.rebind("VALUES (?, ?)"))
}

func TestSaveContext_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	s := New(db, Postgres)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(s.rebind(insertContext))).
		WithArgs("community approval", "en", "west_africa", "ubuntu", 0.71, `["community"]`, "compliance", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := s.SaveContext(context.Background(), &ContextRecord{
		Text:            "community approval",
		Language:        "en",
		Region:          "west_africa",
		Variant:         "ubuntu",
		ConfidenceScore: 0.71,
		CulturalMarkers: []string{"community"},
		TradeContext:    "compliance",
		CreatedAt:       at,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSaveInsight_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, Postgres)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(s.rebind(insertInsight))).
		WithArgs(
			sql.NullInt64{Int64: 42, Valid: true},
			"compliance",
			`{"markers":["community"],"sentiment":"neutral"}`,
			`["Review Delay risk: delay"]`,
			`{"trade_context":"compliance"}`,
			`["Delay risk: delay"]`,
			0.92,
			at,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	id, err := s.SaveInsight(context.Background(), &InsightRecord{
		ContextID:         42,
		EventType:         "compliance",
		CulturalFactors:   map[string]any{"markers": []string{"community"}, "sentiment": "neutral"},
		Recommendations:   []string{"Review Delay risk: delay"},
		TradeImplications: map[string]any{"trade_context": "compliance"},
		RiskFactors:       []string{"Delay risk: delay"},
		AuthenticityScore: 0.92,
		CreatedAt:         at,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInsight_Defaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(s.rebind(insertInsight))).
		WithArgs(sql.NullInt64{}, "general", "{}", "[]", "{}", "[]", 0.0, sqlmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))

	_, err = s.SaveInsight(context.Background(), &InsightRecord{})
	assert.ErrorContains(t, err, "failed to insert cultural insight")
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.SaveInsight(context.Background(), nil)
	assert.Error(t, err)
}

func TestSaveVerification_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(s.rebind(insertVerification))).
		WithArgs("export_permit_lot-7", "lot-7", `["government"]`, `{"government":1}`, 0.9, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	rec := &VerificationRecord{
		PanxEventID:         "export_permit_lot-7",
		LotID:               "lot-7",
		Validators:          []string{"government"},
		CulturalWeights:     map[string]float64{"government": 1},
		ConsensusAdjustment: 0.9,
	}
	id, err := s.SaveVerification(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMetric_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, Postgres)
	mock.ExpectExec(regexp.QuoteMeta(s.rebind(insertMetric))).
		WithArgs("/api/v1/query", "POST", 200, 1.5, "", "", 0.0, false, true, sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = s.SaveMetric(context.Background(), &MetricRecord{
		Endpoint:        "/api/v1/query",
		Method:          "POST",
		StatusCode:      200,
		ResponseTimeMs:  1.5,
		CortexForwarded: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert metric")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS anisa_cultural_contexts").WillReturnError(errors.New("permission denied"))
	err = New(db, Postgres).Migrate(context.Background())
	assert.ErrorContains(t, err, "failed to create schema")

	assert.Error(t, New(db, Dialect("oracle")).Migrate(context.Background()))
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "data", "anisa.db")})
	require.NoError(t, err)
	defer st.Close()

	s, ok := st.(*SQLStore)
	require.True(t, ok)

	var last int64
	for _, text := range []string{"first", "second"} {
		last, err = s.SaveContext(ctx, &ContextRecord{Text: text, Language: "en", Region: "east_asia", Variant: "guanxi", CulturalMarkers: []string{"trust"}})
		require.NoError(t, err)
	}
	insightID, err := s.SaveInsight(ctx, &InsightRecord{
		ContextID:         last,
		EventType:         "negotiation",
		Recommendations:   []string{"Leverage Partnership opportunity"},
		AuthenticityScore: 0.85,
	})
	require.NoError(t, err)
	assert.Positive(t, insightID)
	_, err = s.SaveVerification(ctx, &VerificationRecord{LotID: "lot-1"})
	require.NoError(t, err)
	require.NoError(t, s.SaveMetric(ctx, &MetricRecord{Endpoint: "/health", Method: "GET", StatusCode: 200, PanxIntegrated: true}))

	var text, markers, recs string
	err = s.db.QueryRowContext(ctx, `SELECT c.text, c.cultural_markers, i.recommendations
		FROM anisa_cultural_insights i JOIN anisa_cultural_contexts c ON c.id = i.context_id
		WHERE i.id = ?`, insightID).Scan(&text, &markers, &recs)
	require.NoError(t, err)
	assert.Equal(t, "second", text)
	assert.JSONEq(t, `["trust"]`, markers)
	assert.JSONEq(t, `["Leverage Partnership opportunity"]`, recs)
	assert.NoError(t, s.Ping(ctx))
}

func TestOpen_None(t *testing.T) {
	st, err := Open(context.Background(), config.StorageConfig{Driver: config.DriverNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, st)
}
