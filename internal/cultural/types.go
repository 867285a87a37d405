// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cultural defines the value types that flow through the ANISA
// pipeline: the detected context, its authentication, the extracted
// understanding and the synthesized response.
package cultural

// Region is a coarse geographic and cultural zone.
type Region string

// Variant is a named cultural intelligence style.
type Variant string

// TradeContext is the kind of commercial interaction a text belongs to.
type TradeContext string

// ComplianceLevel grades how many compliance factors a text touches.
type ComplianceLevel string

// Regions and variants shipped with the default lexicon. A custom lexicon may
// declare more.
const (
	RegionWestAfrica   Region = "west_africa"
	RegionSouthAsia    Region = "south_asia"
	RegionEastAsia     Region = "east_asia"
	RegionLatinAmerica Region = "latin_america"
	RegionMiddleEast   Region = "middle_east"
	RegionNorthAmerica Region = "north_america"
	RegionEurope       Region = "europe"

	VariantUbuntu        Variant = "ubuntu"
	VariantJugaad        Variant = "jugaad"
	VariantGuanxi        Variant = "guanxi"
	VariantJeitinho      Variant = "jeitinho"
	VariantWasta         Variant = "wasta"
	VariantIndividualism Variant = "individualism"
	VariantCollectivism  Variant = "collectivism"

	TradeCompliance   TradeContext = "compliance"
	TradeNegotiation  TradeContext = "negotiation"
	TradeSettlement   TradeContext = "settlement"
	TradeVerification TradeContext = "verification"
	TradeLogistics    TradeContext = "logistics"
)

// Compliance levels.
const (
	ComplianceBasic    ComplianceLevel = "basic"
	ComplianceEnhanced ComplianceLevel = "enhanced"
	ComplianceStrict   ComplianceLevel = "strict"
)

// LevelForFactors maps the number of matched compliance factors to a level.
func LevelForFactors(n int) ComplianceLevel {
	switch {
	case n >= 3:
		return ComplianceStrict
	case n >= 1:
		return ComplianceEnhanced
	default:
		return ComplianceBasic
	}
}

// Context is the detected cultural frame of one input text.
type Context struct {
	Region            Region          `json:"region"`
	Variant           Variant         `json:"variant"`
	TradeContext      TradeContext    `json:"trade_context"`
	ComplianceLevel   ComplianceLevel `json:"compliance_level"`
	ComplianceFactors []string        `json:"compliance_factors"`
	Language          string          `json:"language"`
	Dialect           string          `json:"dialect,omitempty"`

	// SovereigntyRequirements and CommunityStakeholders are supplied by the
	// caller and feed the sovereignty and community flags of Authentication.
	SovereigntyRequirements map[string]bool `json:"sovereignty_requirements,omitempty"`
	CommunityStakeholders   []string        `json:"community_stakeholders,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Authentication is the scored judgement of a text against its context.
type Authentication struct {
	IsAuthentic           bool     `json:"is_authentic"`
	ConfidenceScore       float64  `json:"confidence_score"`
	CulturalAlignment     float64  `json:"cultural_alignment"`
	ComplianceAlignment   float64  `json:"compliance_alignment"`
	DetectedMarkers       []string `json:"detected_markers"`
	SovereigntyCompliance bool     `json:"sovereignty_compliance"`
	CommunityValidation   bool     `json:"community_validation"`
	ValidationErrors      []string `json:"validation_errors,omitempty"`
}

// Understanding is the set of human-readable observations extracted from a
// text. Every list is ordered by the extractor's fixed check order.
type Understanding struct {
	CulturalInsights      []string       `json:"cultural_insights"`
	Nuances               []string       `json:"nuances"`
	TrustIndicators       []string       `json:"trust_indicators"`
	TradeImplications     []string       `json:"trade_implications"`
	RiskFactors           []string       `json:"risk_factors"`
	OpportunityIndicators []string       `json:"opportunity_indicators"`
	Sentiment             string         `json:"sentiment"`
	ContextualMeaning     map[string]any `json:"contextual_meaning,omitempty"`
}

// Response is a short culturally framed reply.
type Response struct {
	ResponseText      string         `json:"response_text"`
	Variant           Variant        `json:"variant"`
	Region            Region         `json:"region"`
	AuthenticityScore float64        `json:"authenticity_score"`
	MarkersUsed       []string       `json:"markers_used"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)
