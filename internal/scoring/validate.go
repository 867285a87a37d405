package scoring

import (
	"math"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
)

// ResponseValidation judges a synthesized response.
type ResponseValidation struct {
	IsAuthentic     bool     `json:"is_authentic"`
	ConfidenceScore float64  `json:"confidence_score"`
	MarkerAlignment float64  `json:"marker_alignment"`
	DetectedMarkers []string `json:"detected_markers"`
	Variant         string   `json:"variant"`
}

// ValidateResponse checks a response against the threshold. Marker alignment
// saturates at three markers; confidence averages alignment and the response's
// own authenticity score.
func (s *Scorer) ValidateResponse(resp cultural.Response, ctx cultural.Context) ResponseValidation {
	alignment := math.Min(1, float64(len(resp.MarkersUsed))/3)
	markers := resp.MarkersUsed
	if markers == nil {
		markers = []string{}
	}
	return ResponseValidation{
		IsAuthentic:     resp.AuthenticityScore >= s.params.MinAuthenticityScore,
		ConfidenceScore: (alignment + resp.AuthenticityScore) / 2,
		MarkerAlignment: alignment,
		DetectedMarkers: markers,
		Variant:         string(ctx.Variant),
	}
}
