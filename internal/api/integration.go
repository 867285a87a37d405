package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/assessment"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/forward"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/store"
)

// PanxAnalyzeRequest is the body of POST /api/v1/panx/analyze.
type PanxAnalyzeRequest struct {
	Text       string `json:"text" binding:"required,max=2000"`
	Language   string `json:"language" binding:"max=10"`
	RegionHint string `json:"region_hint"`
}

// PanxAnalyzeResponse is the PANX view of a pipeline run.
type PanxAnalyzeResponse struct {
	AuthenticityScore float64  `json:"authenticity_score"`
	DetectedRegion    string   `json:"detected_region"`
	DetectedVariant   string   `json:"detected_variant"`
	ComplianceNotes   []string `json:"compliance_notes"`
	Recommendations   []string `json:"recommendations"`
}

// AnalyzeRequest is the body of POST /api/v2/analyze.
type AnalyzeRequest struct {
	Text         string `json:"text" binding:"required,max=5000"`
	Language     string `json:"language" binding:"max=10"`
	TradeContext string `json:"trade_context" binding:"max=100"`
	RegionHint   string `json:"region_hint" binding:"max=50"`
}

// AnalyzeResponse is the reply of POST /api/v2/analyze.
type AnalyzeResponse struct {
	AnalysisID        string         `json:"analysis_id"`
	Region            string         `json:"region"`
	Variant           string         `json:"variant"`
	ConfidenceScore   float64        `json:"confidence_score"`
	AuthenticityScore float64        `json:"authenticity_score"`
	CulturalFactors   map[string]any `json:"cultural_factors"`
	TradeImplications map[string]any `json:"trade_implications"`
	Recommendations   []string       `json:"recommendations"`
	ProcessingTimeMs  float64        `json:"processing_time_ms"`
}

// WeightsRequest is the body of POST /api/v2/panx/cultural_weights.
type WeightsRequest struct {
	EventType    string         `json:"event_type" binding:"required"`
	LotID        string         `json:"lot_id" binding:"required"`
	Validators   []string       `json:"validators" binding:"required,min=1"`
	Region       string         `json:"region" binding:"required"`
	TradeContext map[string]any `json:"trade_context"`
}

// EventAssessRequest is the body of POST /api/v1/panx/event/assess.
type EventAssessRequest struct {
	EventType    string         `json:"event_type" binding:"required"`
	Region       string         `json:"region" binding:"required"`
	TradeContext string         `json:"trade_context" binding:"required"`
	Evidence     map[string]any `json:"evidence"`
}

// recommendationsFor turns the risks and opportunities of a run into advice.
func recommendationsFor(res *pipeline.Result) []string {
	out := []string{}
	for _, r := range res.Understanding.RiskFactors {
		out = append(out, "Review "+r)
	}
	for _, o := range res.Understanding.OpportunityIndicators {
		out = append(out, "Leverage "+o)
	}
	if !res.Authentication.IsAuthentic {
		out = append(out, "Seek community validation before relying on this analysis")
	}
	return out
}

// eventTypeFor names the insight row: the resolved trade context when the
// caller asked for one, "general" otherwise.
func eventTypeFor(req AnalyzeRequest, res *pipeline.Result) string {
	if req.TradeContext == "" {
		return "general"
	}
	return string(res.Context.TradeContext)
}

func complianceNotesFor(res *pipeline.Result) []string {
	notes := []string{fmt.Sprintf("Compliance level: %s", res.Context.ComplianceLevel)}
	return append(notes, res.Understanding.TradeImplications...)
}

func (s *Server) panxAnalyze(c *gin.Context) {
	var req PanxAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := s.deps.Engine.Process(c.Request.Context(), pipeline.Request{
		Text:       req.Text,
		Language:   req.Language,
		RegionHint: req.RegionHint,
	})
	setAnalysisHeaders(c, res)
	c.Set(keyPanx, true)

	c.JSON(http.StatusOK, PanxAnalyzeResponse{
		AuthenticityScore: res.Response.AuthenticityScore,
		DetectedRegion:    string(res.Context.Region),
		DetectedVariant:   string(res.Context.Variant),
		ComplianceNotes:   complianceNotesFor(res),
		Recommendations:   recommendationsFor(res),
	})
}

func (s *Server) panxEventAssess(c *gin.Context) {
	var req EventAssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.Set(keyPanx, true)
	c.JSON(http.StatusOK, s.deps.Assessor.Assess(assessment.Event{
		EventType:    req.EventType,
		Region:       req.Region,
		TradeContext: req.TradeContext,
		Evidence:     req.Evidence,
	}))
}

func (s *Server) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := s.deps.Engine.Process(c.Request.Context(), pipeline.Request{
		Text:             req.Text,
		Language:         req.Language,
		RegionHint:       req.RegionHint,
		TradeContextHint: req.TradeContext,
	})
	setAnalysisHeaders(c, res)

	now := s.now().UTC()
	out := AnalyzeResponse{
		AnalysisID:        uuid.NewString(),
		Region:            string(res.Context.Region),
		Variant:           string(res.Context.Variant),
		ConfidenceScore:   res.Authentication.ConfidenceScore,
		AuthenticityScore: res.Response.AuthenticityScore,
		CulturalFactors: map[string]any{
			"markers":            res.Authentication.DetectedMarkers,
			"compliance_factors": res.Context.ComplianceFactors,
			"compliance_level":   res.Context.ComplianceLevel,
			"insights":           res.Understanding.CulturalInsights,
			"nuances":            res.Understanding.Nuances,
			"trust_indicators":   res.Understanding.TrustIndicators,
			"sentiment":          res.Understanding.Sentiment,
		},
		TradeImplications: map[string]any{
			"trade_context": res.Context.TradeContext,
			"implications":  res.Understanding.TradeImplications,
			"risks":         res.Understanding.RiskFactors,
			"opportunities": res.Understanding.OpportunityIndicators,
		},
		Recommendations:  recommendationsFor(res),
		ProcessingTimeMs: res.ProcessingMs,
	}

	// Both are queued; neither can delay or change the reply.
	if s.deps.Recorder != nil && !res.Degraded {
		s.deps.Recorder.RecordAnalysis(&store.ContextRecord{
			Text:            req.Text,
			Language:        res.Context.Language,
			Region:          out.Region,
			Variant:         out.Variant,
			ConfidenceScore: out.ConfidenceScore,
			CulturalMarkers: res.Authentication.DetectedMarkers,
			TradeContext:    string(res.Context.TradeContext),
			CreatedAt:       now,
		}, &store.InsightRecord{
			EventType:         eventTypeFor(req, res),
			CulturalFactors:   out.CulturalFactors,
			Recommendations:   out.Recommendations,
			TradeImplications: out.TradeImplications,
			RiskFactors:       res.Understanding.RiskFactors,
			AuthenticityScore: out.AuthenticityScore,
			CreatedAt:         now,
		}, out.AnalysisID, out)
	}
	if f := s.deps.Forwarder; f != nil && f.Enabled() {
		f.Forward(map[string]any{
			"event_type":       "cultural_analysis",
			"analysis_id":      out.AnalysisID,
			"region":           out.Region,
			"variant":          out.Variant,
			"confidence_score": out.ConfidenceScore,
			"timestamp":        now.Format(time.RFC3339Nano),
		})
		c.Set(keyForwarded, true)
	}

	c.JSON(http.StatusOK, out)
}

func (s *Server) culturalWeights(c *gin.Context) {
	var req WeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := assessment.Weigh(assessment.WeightsRequest{
		EventType:    req.EventType,
		LotID:        req.LotID,
		Validators:   req.Validators,
		Region:       req.Region,
		TradeContext: req.TradeContext,
	})
	c.Set(keyPanx, true)

	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordVerification(&store.VerificationRecord{
			PanxEventID:         req.EventType + "_" + req.LotID,
			LotID:               req.LotID,
			Validators:          req.Validators,
			CulturalWeights:     res.CulturalWeights,
			ConsensusAdjustment: res.ConsensusAdjustment,
			CreatedAt:           s.now().UTC(),
		})
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) cortexForward(c *gin.Context) {
	if s.deps.Forwarder == nil {
		c.JSON(http.StatusOK, forward.Outcome{Status: forward.StatusDisabled})
		return
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := s.deps.Forwarder.ForwardRaw(c.Request.Context(), raw)
	if errors.Is(err, forward.ErrNotObject) {
		badRequest(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Set(keyForwarded, out.Status == forward.StatusForwarded)
	c.JSON(http.StatusOK, out)
}

var toolDescriptor = gin.H{
	"name":        "anisa.cultural_intelligence",
	"version":     "1.0",
	"description": "Cultural analysis, event assessment hints, and query generation for GTCX.",
	"auth":        gin.H{"type": "api_key", "in": "header", "name": headerAPIKey},
	"functions": []gin.H{
		{
			"name":   "query",
			"method": http.MethodPost,
			"path":   "/api/v1/query",
			"input_schema": gin.H{
				"type":     "object",
				"required": []string{"text"},
				"properties": gin.H{
					"text":             gin.H{"type": "string", "minLength": 1, "maxLength": 1000},
					"language":         gin.H{"type": "string", "default": "auto", "maxLength": 10},
					"cultural_variant": gin.H{"type": "string"},
				},
			},
			"output_schema": gin.H{"type": "object"},
		},
		{
			"name":   "analyze",
			"method": http.MethodPost,
			"path":   "/api/v1/panx/analyze",
			"input_schema": gin.H{
				"type":     "object",
				"required": []string{"text"},
				"properties": gin.H{
					"text":        gin.H{"type": "string", "minLength": 1, "maxLength": 2000},
					"language":    gin.H{"type": "string", "default": "auto", "maxLength": 10},
					"region_hint": gin.H{"type": "string"},
				},
			},
			"output_schema": gin.H{"type": "object"},
		},
		{
			"name":   "event_assess",
			"method": http.MethodPost,
			"path":   "/api/v1/panx/event/assess",
			"input_schema": gin.H{
				"type":     "object",
				"required": []string{"event_type", "region", "trade_context"},
				"properties": gin.H{
					"event_type":    gin.H{"type": "string"},
					"region":        gin.H{"type": "string"},
					"trade_context": gin.H{"type": "string"},
					"evidence":      gin.H{"type": "object"},
				},
			},
			"output_schema": gin.H{"type": "object"},
		},
	},
}
