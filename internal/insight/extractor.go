// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package insight extracts human-readable observations from a text in its
// detected cultural context.
//
// Every check runs independently and appends in a fixed order, so the same
// text and context always produce the same lists.
package insight

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
)

// generalInsights apply to every variant.
var generalInsights = []lexicon.Cue{
	{Text: "Collective orientation detected", Keywords: []string{"community", "together"}},
	{Text: "Problem-solving approach detected", Keywords: []string{"creative", "solution"}},
}

var trustKeywords = []string{"trust", "believe", "faith", "confidence", "rely", "depend"}

// tradeImplications are keyed by trade context.
var tradeImplications = map[cultural.TradeContext][]lexicon.Cue{
	cultural.TradeCompliance: {
		{Text: "Regulatory documentation will be reviewed before approval", Keywords: []string{"permit", "license", "approval", "certification"}},
		{Text: "Audit readiness affects timeline", Keywords: []string{"audit", "inspection"}},
	},
	cultural.TradeNegotiation: {
		{Text: "Terms are still open to negotiation", Keywords: []string{"offer", "terms", "proposal", "bargain"}},
		{Text: "Binding commitments under discussion", Keywords: []string{"contract", "agreement"}},
	},
	cultural.TradeSettlement: {
		{Text: "Funds movement requires settlement confirmation", Keywords: []string{"payment", "transfer", "remittance"}},
		{Text: "Escrow or documentary credit in use", Keywords: []string{"escrow", "letter of credit"}},
	},
	cultural.TradeVerification: {
		{Text: "Provenance evidence is part of the transaction", Keywords: []string{"provenance", "origin", "custody"}},
		{Text: "Independent verification requested", Keywords: []string{"verify", "verification", "assay", "validate"}},
	},
	cultural.TradeLogistics: {
		{Text: "Cross-border movement needs customs clearance", Keywords: []string{"customs", "border"}},
		{Text: "Physical delivery schedule matters", Keywords: []string{"shipment", "delivery", "freight", "cargo"}},
	},
}

// variantTradeNotes add a variant-specific trade implication.
var variantTradeNotes = map[cultural.Variant]string{
	cultural.VariantUbuntu:        "Community endorsement strengthens the transaction",
	cultural.VariantJugaad:        "Expect pragmatic adjustments to formal terms",
	cultural.VariantGuanxi:        "Relationship standing precedes formal agreement",
	cultural.VariantJeitinho:      "Personal rapport can unblock procedural delays",
	cultural.VariantWasta:         "Introductions through trusted intermediaries carry weight",
	cultural.VariantIndividualism: "Decision makers expect direct, quantified terms",
	cultural.VariantCollectivism:  "Institutional and partner sign-off is expected",
}

var riskCues = []lexicon.Cue{
	{Text: "Dispute risk", Keywords: []string{"dispute", "conflict", "disagreement"}},
	{Text: "Delay risk", Keywords: []string{"delay", "late", "backlog"}},
	{Text: "Fraud risk", Keywords: []string{"fraud", "counterfeit", "forged", "smuggl"}},
	{Text: "Sanctions exposure", Keywords: []string{"sanction", "embargo", "blacklist"}},
}

var opportunityCues = []lexicon.Cue{
	{Text: "Growth opportunity", Keywords: []string{"growth", "expansion", "expand"}},
	{Text: "Partnership opportunity", Keywords: []string{"partnership", "partner", "joint venture"}},
	{Text: "Export opportunity", Keywords: []string{"export", "market access", "new market"}},
	{Text: "Investment interest", Keywords: []string{"investment", "invest", "financing"}},
}

var (
	positiveWords = []string{"good", "great", "excellent", "wonderful", "amazing", "helpful"}
	negativeWords = []string{"bad", "terrible", "awful", "horrible", "difficult", "problem"}
)

// Extractor produces an Understanding for a text.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract runs every check in order against the variant cues held by lex.
// Lists are never nil.
func (e *Extractor) Extract(lex *lexicon.Lexicon, text string, ctx cultural.Context) cultural.Understanding {
	folded := lexicon.Normalize(text)
	entry, _ := lex.Variant(ctx.Variant)

	u := cultural.Understanding{
		CulturalInsights:      []string{},
		Nuances:               []string{},
		TrustIndicators:       []string{},
		TradeImplications:     []string{},
		RiskFactors:           []string{},
		OpportunityIndicators: []string{},
	}

	u.CulturalInsights = appendFiring(u.CulturalInsights, folded, entry.Insights)
	u.CulturalInsights = appendFiring(u.CulturalInsights, folded, generalInsights)

	u.Nuances = appendFiring(u.Nuances, folded, entry.Nuances)

	for _, kw := range lexicon.Matches(folded, trustKeywords) {
		u.TrustIndicators = append(u.TrustIndicators, "Trust indicator: "+kw)
	}
	u.TrustIndicators = appendFiring(u.TrustIndicators, folded, entry.TrustPatterns)

	u.TradeImplications = appendFiring(u.TradeImplications, folded, tradeImplications[ctx.TradeContext])
	if note, ok := variantTradeNotes[ctx.Variant]; ok && len(u.TradeImplications) > 0 {
		u.TradeImplications = append(u.TradeImplications, note)
	}

	for _, cue := range riskCues {
		if cue.Fires(folded) {
			u.RiskFactors = append(u.RiskFactors, fmt.Sprintf("%s: %s", cue.Text, strings.Join(lexicon.Matches(folded, cue.Keywords), ", ")))
		}
	}
	u.OpportunityIndicators = appendFiring(u.OpportunityIndicators, folded, opportunityCues)

	u.Sentiment = Sentiment(folded)
	u.ContextualMeaning = map[string]any{
		"text_length": utf8.RuneCountInString(text),
		"word_count":  len(strings.Fields(text)),
		"language":    ctx.Language,
		"region":      string(ctx.Region),
		"variant":     string(ctx.Variant),
		"sentiment":   u.Sentiment,
	}
	return u
}

func appendFiring(dst []string, folded string, cues []lexicon.Cue) []string {
	for _, cue := range cues {
		if cue.Fires(folded) {
			dst = append(dst, cue.Text)
		}
	}
	return dst
}

// Sentiment compares positive and negative word counts in a normalized text.
func Sentiment(folded string) string {
	pos := lexicon.Count(folded, positiveWords)
	neg := lexicon.Count(folded, negativeWords)
	switch {
	case pos > neg:
		return cultural.SentimentPositive
	case neg > pos:
		return cultural.SentimentNegative
	default:
		return cultural.SentimentNeutral
	}
}
