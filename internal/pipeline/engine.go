// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline runs the ANISA analysis: context detection, authenticity
// scoring, insight extraction and response synthesis.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/classifier"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/insight"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/scoring"
	log "github.com/sirupsen/logrus"
)

// FallbackResponseText is returned when a run cannot complete.
const FallbackResponseText = "I apologize, but I'm having trouble processing your request. Please try again."

// LexiconSource yields the lexicon in effect. *lexicon.Store implements it.
type LexiconSource interface {
	Current() *lexicon.Lexicon
}

// Authenticator scores a text against its context.
type Authenticator interface {
	Authenticate(lex *lexicon.Lexicon, text string, ctx cultural.Context) cultural.Authentication
	ValidateResponse(resp cultural.Response, ctx cultural.Context) scoring.ResponseValidation
}

// Extractor derives the Understanding of a text.
type Extractor interface {
	Extract(lex *lexicon.Lexicon, text string, ctx cultural.Context) cultural.Understanding
}

// Synthesizer writes the reply.
type Synthesizer interface {
	Synthesize(lex *lexicon.Lexicon, text string, ctx cultural.Context, u cultural.Understanding) cultural.Response
}

// Request is one pipeline input. Only Text is required.
type Request struct {
	Text string `json:"text"`
	// Language is an ISO code, or "" / "auto" to detect it.
	Language         string `json:"language,omitempty"`
	RegionHint       string `json:"region_hint,omitempty"`
	TradeContextHint string `json:"trade_context_hint,omitempty"`
	PreferredVariant string `json:"preferred_variant,omitempty"`

	SovereigntyRequirements map[string]bool `json:"sovereignty_requirements,omitempty"`
	CommunityStakeholders   []string        `json:"community_stakeholders,omitempty"`
}

// Result is everything one run produced.
type Result struct {
	Context        cultural.Context           `json:"cultural_context"`
	Authentication cultural.Authentication    `json:"authentication"`
	Understanding  cultural.Understanding     `json:"native_understanding"`
	Response       cultural.Response          `json:"response"`
	Validation     scoring.ResponseValidation `json:"response_validation"`
	Degraded       bool                       `json:"degraded"`
	ProcessingMs   float64                    `json:"processing_time_ms"`
}

// Options control context detection.
type Options struct {
	EnableDialectDetection bool
	EnableVariantSwitching bool
	SupportedLanguages     []string
	DefaultLanguage        string
}

// Deps are the collaborators of an Engine. Metrics and Collectors may be nil.
type Deps struct {
	Lexicons    LexiconSource
	Scorer      Authenticator
	Extractor   Extractor
	Synthesizer Synthesizer
	Metrics     *metrics.Accumulator
	Collectors  *metrics.Collectors
}

// Engine runs the pipeline. It is safe for concurrent use.
type Engine struct {
	deps Deps
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(deps Deps, opts Options) *Engine {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &Engine{deps: deps, opts: opts}
}

// Lexicon returns the lexicon currently in effect.
func (e *Engine) Lexicon() *lexicon.Lexicon { return e.deps.Lexicons.Current() }

// Metrics returns the accumulator the engine records into.
func (e *Engine) Metrics() *metrics.Accumulator { return e.deps.Metrics }

// Process runs the full pipeline. It always returns a Result: failures inside
// any stage, and a cancelled ctx, produce the degraded result instead.
//
// The lexicon is read once per run; a reload that lands mid-run takes effect
// on the next request.
func (e *Engine) Process(ctx context.Context, req Request) (res *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("pipeline run failed: %v", r)
			res = e.degraded(fmt.Sprintf("processing error: %v", r))
		}
		res.ProcessingMs = float64(time.Since(start)) / float64(time.Millisecond)
		e.record(res, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return e.degraded(fmt.Sprintf("request cancelled: %v", err))
	}

	lex := e.deps.Lexicons.Current()
	cctx := e.detectContext(lex, req)
	auth := e.deps.Scorer.Authenticate(lex, req.Text, cctx)
	u := e.deps.Extractor.Extract(lex, req.Text, cctx)
	resp := e.deps.Synthesizer.Synthesize(lex, req.Text, cctx, u)
	resp.Metadata = withEntries(resp.Metadata, map[string]any{
		"is_authentic":     auth.IsAuthentic,
		"confidence_score": auth.ConfidenceScore,
		"trade_context":    string(cctx.TradeContext),
		"compliance_level": string(cctx.ComplianceLevel),
		"language":         cctx.Language,
	})

	return &Result{
		Context:        cctx,
		Authentication: auth,
		Understanding:  u,
		Response:       resp,
		Validation:     e.deps.Scorer.ValidateResponse(resp, cctx),
	}
}

// DetectContext classifies the request text and applies the caller's hints.
//
// Region and variant stay paired: an accepted region hint selects that
// region's representative variant, and an accepted preferred variant moves
// the region to the variant's own. When both are accepted the variant wins.
func (e *Engine) DetectContext(req Request) cultural.Context {
	return e.detectContext(e.deps.Lexicons.Current(), req)
}

func (e *Engine) detectContext(lex *lexicon.Lexicon, req Request) cultural.Context {
	cls := classifier.Classify(lex, req.Text)

	cctx := cultural.Context{
		Region:                  cls.Region,
		Variant:                 cls.Variant,
		TradeContext:            cls.TradeContext,
		ComplianceLevel:         cls.ComplianceLevel,
		ComplianceFactors:       cls.ComplianceFactors,
		SovereigntyRequirements: req.SovereigntyRequirements,
		CommunityStakeholders:   req.CommunityStakeholders,
		Metadata:                map[string]any{},
	}

	var ignored []string
	var hintedRegion cultural.Region
	if hint := cultural.Region(lexicon.Normalize(req.RegionHint)); hint != "" {
		if lex.HasRegion(hint) {
			hintedRegion = hint
			cctx.Region = hint
			if v, ok := lex.VariantFor(hint); ok {
				cctx.Variant = v
			}
		} else {
			ignored = append(ignored, "region_hint")
		}
	}
	if hint := cultural.TradeContext(lexicon.Normalize(req.TradeContextHint)); hint != "" {
		if lex.HasTradeContext(hint) {
			cctx.TradeContext = hint
		} else {
			ignored = append(ignored, "trade_context_hint")
		}
	}
	if hint := cultural.Variant(lexicon.Normalize(req.PreferredVariant)); hint != "" {
		if e.opts.EnableVariantSwitching && lex.HasVariant(hint) {
			cctx.Variant = hint
			if r, ok := lex.RegionOf(hint); ok {
				cctx.Region = r
			}
			if hintedRegion != "" && hintedRegion != cctx.Region {
				cctx.Metadata["overridden_hints"] = []string{"region_hint"}
			}
		} else {
			ignored = append(ignored, "preferred_variant")
		}
	}
	if len(ignored) > 0 {
		cctx.Metadata["ignored_hints"] = ignored
	}
	if len(cls.Defaulted) > 0 {
		cctx.Metadata["defaulted"] = cls.Defaulted
	}

	lang := lexicon.Normalize(req.Language)
	if lang == "" || lang == "auto" {
		lang = insight.DetectLanguage(req.Text, e.opts.DefaultLanguage)
	}
	cctx.Language = lang
	cctx.Metadata["language_supported"] = len(e.opts.SupportedLanguages) == 0 || slices.Contains(e.opts.SupportedLanguages, lang)

	if e.opts.EnableDialectDetection {
		cctx.Dialect = insight.DetectDialect(req.Text, cctx.Region)
	}
	return cctx
}

// TopicInsights returns general cultural angles on a topic followed by the
// insight themes of the variant the topic classifies as.
func (e *Engine) TopicInsights(topic string) (cultural.Variant, []string) {
	lex := e.deps.Lexicons.Current()
	cls := classifier.Classify(lex, topic)
	out := []string{
		fmt.Sprintf("Cultural perspective on %s", topic),
		fmt.Sprintf("Regional variations in %s", topic),
		fmt.Sprintf("Traditional approaches to %s", topic),
	}
	if entry, ok := lex.Variant(cls.Variant); ok {
		for _, cue := range entry.Insights {
			out = append(out, cue.Text)
		}
	}
	return cls.Variant, out
}

// degraded builds the result reported when a run cannot complete. It must
// not depend on the state that just failed, so it falls back to built-in
// defaults when the lexicon is unavailable.
func (e *Engine) degraded(reason string) *Result {
	region, variant, trade := cultural.RegionWestAfrica, cultural.VariantUbuntu, cultural.TradeCompliance
	func() {
		defer func() { _ = recover() }()
		lex := e.deps.Lexicons.Current()
		region, variant, trade = lex.DefaultRegion(), lex.DefaultVariant(), lex.DefaultTradeContext()
	}()

	cctx := cultural.Context{
		Region:            region,
		Variant:           variant,
		TradeContext:      trade,
		ComplianceLevel:   cultural.ComplianceBasic,
		ComplianceFactors: []string{},
		Language:          e.opts.DefaultLanguage,
		Metadata:          map[string]any{"is_fallback": true},
	}
	resp := cultural.Response{
		ResponseText:      FallbackResponseText,
		Variant:           variant,
		Region:            region,
		AuthenticityScore: 0,
		MarkersUsed:       []string{},
		Metadata: map[string]any{
			"response_type":     "error",
			"generation_method": "fallback",
			"is_fallback":       true,
			"error":             reason,
		},
	}
	return &Result{
		Context:        cctx,
		Authentication: scoring.Degraded(reason),
		Understanding: cultural.Understanding{
			CulturalInsights:      []string{},
			Nuances:               []string{},
			TrustIndicators:       []string{},
			TradeImplications:     []string{},
			RiskFactors:           []string{},
			OpportunityIndicators: []string{},
			Sentiment:             cultural.SentimentNeutral,
		},
		Response: resp,
		Validation: scoring.ResponseValidation{
			DetectedMarkers: []string{},
			Variant:         string(variant),
		},
		Degraded: true,
	}
}

func (e *Engine) record(res *Result, elapsed time.Duration) {
	if m := e.deps.Metrics; m != nil {
		if res.Degraded {
			m.RecordFailure(elapsed)
		} else {
			m.RecordSuccess(elapsed, string(res.Context.Variant))
		}
	}
	e.deps.Collectors.ObserveAnalysis(string(res.Context.Region), string(res.Context.Variant))
}

func withEntries(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
