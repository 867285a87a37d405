package assessment

import (
	"slices"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
)

// WeightsRequest asks how much each validator class should count towards
// consensus on an event.
type WeightsRequest struct {
	EventType    string         `json:"event_type"`
	LotID        string         `json:"lot_id"`
	Validators   []string       `json:"validators"`
	Region       string         `json:"region"`
	TradeContext map[string]any `json:"trade_context,omitempty"`
}

// WeightsResult is the cultural weighting of a WeightsRequest.
type WeightsResult struct {
	CulturalWeights     map[string]float64 `json:"cultural_weights"`
	ConsensusAdjustment float64            `json:"consensus_adjustment"`
	CulturalFactors     []string           `json:"cultural_factors"`
	Recommendations     []string           `json:"recommendations"`
}

// "africa" and "asia" are accepted alongside the lexicon regions; older
// PANX clients still send them.
func isAfrican(region string) bool {
	return region == "africa" || region == string(cultural.RegionWestAfrica)
}

func isAsian(region string) bool {
	return region == "asia" || region == string(cultural.RegionEastAsia) || region == string(cultural.RegionSouthAsia)
}

// Weigh computes every part of a WeightsResult.
func Weigh(req WeightsRequest) WeightsResult {
	return WeightsResult{
		CulturalWeights:     CulturalWeights(req.Validators, req.Region, req.EventType),
		ConsensusAdjustment: ConsensusAdjustment(req.Region, req.EventType),
		CulturalFactors:     CulturalFactors(req.Region, req.EventType),
		Recommendations:     Recommendations(req.Region, req.EventType, req.Validators),
	}
}

// CulturalWeights gives every validator a base weight of 1, boosts community
// validators in Africa (1.5) and government validators in Asia (1.3), and
// normalizes the result to sum to 1. Duplicate validators count once.
func CulturalWeights(validators []string, region, eventType string) map[string]float64 {
	region = lexicon.Normalize(region)
	weights := make(map[string]float64, len(validators))
	for _, v := range validators {
		weights[v] = 1
	}
	if _, ok := weights["community"]; ok && isAfrican(region) {
		weights["community"] = 1.5
	}
	if _, ok := weights["government"]; ok && isAsian(region) {
		weights["government"] = 1.3
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	for k, w := range weights {
		weights[k] = w / total
	}
	return weights
}

// ConsensusAdjustment scales the consensus threshold: community matters in
// Africa need more agreement, trade paperwork in Asia slightly less.
func ConsensusAdjustment(region, eventType string) float64 {
	region, eventType = lexicon.Normalize(region), lexicon.Normalize(eventType)
	switch {
	case isAfrican(region) && (eventType == "community_approval" || eventType == "mining_rights"):
		return 1.2
	case isAsian(region) && (eventType == "export_permit" || eventType == "trade_agreement"):
		return 0.9
	default:
		return 1.0
	}
}

// CulturalFactors lists the cultural considerations relevant in a region.
func CulturalFactors(region, eventType string) []string {
	region = lexicon.Normalize(region)
	switch {
	case isAfrican(region):
		return []string{"ubuntu", "community_consensus", "elder_approval"}
	case isAsian(region):
		return []string{"guanxi", "face_preservation", "hierarchy_respect"}
	default:
		return []string{}
	}
}

// Recommendations suggests changes to the validator set or the process.
func Recommendations(region, eventType string, validators []string) []string {
	region, eventType = lexicon.Normalize(region), lexicon.Normalize(eventType)
	out := []string{}
	if isAfrican(region) && !slices.Contains(validators, "community") {
		out = append(out, "Consider including community representatives for better cultural alignment")
	}
	if isAsian(region) && eventType == "trade_agreement" {
		out = append(out, "Ensure proper relationship building before formal negotiations")
	}
	return out
}
