package pipeline

import (
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/insight"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/scoring"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/synth"
)

// FromConfig wires the standard stages from configuration. A nil rnd uses
// synth.DefaultRandom.
func FromConfig(cfg *config.Config, store LexiconSource, acc *metrics.Accumulator, col *metrics.Collectors, rnd synth.RandomSource) *Engine {
	scorer := scoring.NewScorer(scoring.Params{
		CulturalWeight:        cfg.Scoring.CulturalWeight,
		ComplianceWeight:      cfg.Scoring.ComplianceWeight,
		BucketCoverage:        cfg.Scoring.BucketCoverage,
		EmptyBucketConfidence: cfg.Scoring.EmptyBucketConfidence,
		MinAuthenticityScore:  cfg.Engine.MinAuthenticityScore,
	})
	synthesizer := synth.New(rnd, synth.Options{
		MaxResponseLength: cfg.Engine.MaxResponseLength,
		MaxMarkers:        cfg.Engine.MaxCulturalMarkers,
		EnableEnhancement: cfg.Engine.EnableResponseEnhancement,
	})
	return NewEngine(Deps{
		Lexicons:    store,
		Scorer:      scorer,
		Extractor:   insight.NewExtractor(),
		Synthesizer: synthesizer,
		Metrics:     acc,
		Collectors:  col,
	}, Options{
		EnableDialectDetection: cfg.Engine.EnableDialectDetection,
		EnableVariantSwitching: cfg.Engine.EnableVariantSwitching,
		SupportedLanguages:     cfg.Engine.SupportedLanguages,
		DefaultLanguage:        cfg.Engine.DefaultLanguage,
	})
}

// ScorerMetrics returns the confidence distribution of the scorer when it
// keeps one.
func (e *Engine) ScorerMetrics() map[string]interface{} {
	if m, ok := e.deps.Scorer.(interface{ GetMetrics() map[string]interface{} }); ok {
		return m.GetMetrics()
	}
	return nil
}
