// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scoring judges how authentically a text reflects its detected
// cultural context.
package scoring

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	log "github.com/sirupsen/logrus"
)

// Params are the tunable constants of the authenticity blend.
type Params struct {
	// CulturalWeight and ComplianceWeight blend the two confidences.
	CulturalWeight   float64
	ComplianceWeight float64
	// BucketCoverage is the share of a bucket that must match for full confidence.
	BucketCoverage float64
	// EmptyBucketConfidence is used when a bucket has no keywords.
	EmptyBucketConfidence float64
	// MinAuthenticityScore is the authenticity threshold.
	MinAuthenticityScore float64
}

// DefaultParams returns the standard weights: 0.6 cultural, 0.4 compliance,
// 30% bucket coverage and a 0.7 threshold.
func DefaultParams() Params {
	return Params{
		CulturalWeight:        0.6,
		ComplianceWeight:      0.4,
		BucketCoverage:        0.3,
		EmptyBucketConfidence: 0.5,
		MinAuthenticityScore:  0.7,
	}
}

var (
	sovereigntyKeywords = []string{"sovereignty", "national", "local authority", "data residency", "jurisdiction"}
	communityKeywords   = []string{"community", "consultation", "consent", "elders", "stakeholder"}
)

// Scorer computes Authentication results and keeps a running distribution of
// the confidences it produced. The counters are atomic.
type Scorer struct {
	params Params

	totalScored       atomic.Int64
	confidenceBits    atomic.Uint64 // float64 sum
	authenticCount    atomic.Int64
	lowConfidence     atomic.Int64 // < 0.30
	highConfidence    atomic.Int64 // >= 0.90
	recoveredFailures atomic.Int64
}

// NewScorer creates a Scorer.
func NewScorer(params Params) *Scorer {
	return &Scorer{params: params}
}

// Params returns the parameters in effect.
func (s *Scorer) Params() Params { return s.params }

// Confidence maps a hit count on a bucket of the given size to [0, 1].
// A bucket is fully confident once coverage*size keywords match; an empty
// bucket yields emptyBucket.
func Confidence(hits, bucketSize int, coverage, emptyBucket float64) float64 {
	if bucketSize == 0 {
		return emptyBucket
	}
	denom := math.Max(1, coverage*float64(bucketSize))
	return math.Min(1, float64(hits)/denom)
}

// Authenticate scores text against ctx using lex. It never panics: an internal
// failure, including a nil lex, yields zero confidence, not authentic, and a
// validation error.
func (s *Scorer) Authenticate(lex *lexicon.Lexicon, text string, ctx cultural.Context) (auth cultural.Authentication) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("authentication failed: %v", r)
			auth = Degraded(fmt.Sprintf("authentication error: %v", r))
			s.record(auth, true)
		}
	}()

	folded := lexicon.Normalize(text)

	variantBucket := lex.VariantKeywords(ctx.Variant)
	markers := lexicon.Matches(folded, variantBucket)
	if markers == nil {
		markers = []string{}
	}
	culturalConf := Confidence(len(markers), len(variantBucket), s.params.BucketCoverage, s.params.EmptyBucketConfidence)

	tradeBucket := lex.TradeContextKeywords(ctx.TradeContext)
	complianceConf := Confidence(lexicon.Count(folded, tradeBucket), len(tradeBucket), s.params.BucketCoverage, s.params.EmptyBucketConfidence)

	score := s.params.CulturalWeight*culturalConf + s.params.ComplianceWeight*complianceConf
	score = math.Max(0, math.Min(1, score))

	auth = cultural.Authentication{
		IsAuthentic:         score >= s.params.MinAuthenticityScore,
		ConfidenceScore:     score,
		CulturalAlignment:   culturalConf,
		ComplianceAlignment: complianceConf,
		DetectedMarkers:     markers,
	}
	auth.SovereigntyCompliance = lexicon.ContainsAny(folded, sovereigntyKeywords) || len(ctx.SovereigntyRequirements) > 0
	auth.CommunityValidation = lexicon.ContainsAny(folded, communityKeywords) || len(ctx.CommunityStakeholders) > 0
	if !auth.IsAuthentic {
		auth.ValidationErrors = []string{fmt.Sprintf(
			"insufficient cultural markers: confidence %.2f below threshold %.2f", score, s.params.MinAuthenticityScore)}
	}

	s.record(auth, false)
	return auth
}

// Degraded is the Authentication reported when scoring could not complete.
func Degraded(reason string) cultural.Authentication {
	return cultural.Authentication{
		IsAuthentic:      false,
		ConfidenceScore:  0,
		DetectedMarkers:  []string{},
		ValidationErrors: []string{reason},
	}
}

func (s *Scorer) record(auth cultural.Authentication, failed bool) {
	s.totalScored.Add(1)
	addFloat(&s.confidenceBits, auth.ConfidenceScore)
	if auth.IsAuthentic {
		s.authenticCount.Add(1)
	}
	if auth.ConfidenceScore < 0.30 {
		s.lowConfidence.Add(1)
	} else if auth.ConfidenceScore >= 0.90 {
		s.highConfidence.Add(1)
	}
	if failed {
		s.recoveredFailures.Add(1)
	}
}

func addFloat(bits *atomic.Uint64, delta float64) {
	for {
		old := bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// GetMetrics returns the confidence distribution observed so far. Under
// concurrent scoring the counters are individually exact but may be read at
// slightly different moments.
func (s *Scorer) GetMetrics() map[string]interface{} {
	total := s.totalScored.Load()
	avg := 0.0
	if total > 0 {
		avg = math.Float64frombits(s.confidenceBits.Load()) / float64(total)
	}
	return map[string]interface{}{
		"total_scored":          int(total),
		"average_confidence":    avg,
		"authentic_count":       int(s.authenticCount.Load()),
		"low_confidence_count":  int(s.lowConfidence.Load()),
		"high_confidence_count": int(s.highConfidence.Load()),
		"recovered_failures":    int(s.recoveredFailures.Load()),
	}
}
