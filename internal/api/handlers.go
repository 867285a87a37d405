package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/buildinfo"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/synth"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Text             string `json:"text" binding:"required,max=1000"`
	Language         string `json:"language" binding:"max=10"`
	CulturalVariant  string `json:"cultural_variant"`
	RegionHint       string `json:"region_hint"`
	TradeContextHint string `json:"trade_context_hint"`

	SovereigntyRequirements map[string]bool `json:"sovereignty_requirements"`
	CommunityStakeholders   []string        `json:"community_stakeholders"`
}

// QueryContext is the detected context echoed with a query response.
type QueryContext struct {
	Region          string `json:"region"`
	Variant         string `json:"variant"`
	Language        string `json:"language"`
	Dialect         string `json:"dialect,omitempty"`
	TradeContext    string `json:"trade_context"`
	ComplianceLevel string `json:"compliance_level"`
}

// QueryResponse is the reply of POST /api/v1/query.
type QueryResponse struct {
	ResponseText        string       `json:"response_text"`
	CulturalVariant     string       `json:"cultural_variant"`
	AuthenticityScore   float64      `json:"authenticity_score"`
	CulturalMarkersUsed []string     `json:"cultural_markers_used"`
	ConfidenceScore     float64      `json:"confidence_score"`
	IsAuthentic         bool         `json:"is_authentic"`
	Degraded            bool         `json:"degraded"`
	ProcessingTime      float64      `json:"processing_time"`
	CulturalContext     QueryContext `json:"cultural_context"`
}

// InsightsRequest is the body of POST /api/v1/insights.
type InsightsRequest struct {
	Topic string `json:"topic" binding:"required,max=100"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
}

// setAnalysisHeaders echoes the outcome of a pipeline run for gateways.
func setAnalysisHeaders(c *gin.Context, res *pipeline.Result) {
	c.Header("X-ANISA-Region", string(res.Context.Region))
	c.Header("X-ANISA-Variant", string(res.Context.Variant))
	c.Header("X-ANISA-Authenticity", fmt.Sprintf("%.2f", res.Response.AuthenticityScore))
	c.Set(keyRegion, string(res.Context.Region))
	c.Set(keyVariant, string(res.Context.Variant))
	c.Set(keyAuthenticity, res.Response.AuthenticityScore)
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "ANISA - Authentic Native Intelligence Systematically Applied",
		"version": buildinfo.Version,
		"status":  "operational",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   strings.ToLower(buildinfo.Service),
		"version":   buildinfo.Version,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res := s.deps.Engine.Process(c.Request.Context(), pipeline.Request{
		Text:                    req.Text,
		Language:                req.Language,
		RegionHint:              req.RegionHint,
		TradeContextHint:        req.TradeContextHint,
		PreferredVariant:        req.CulturalVariant,
		SovereigntyRequirements: req.SovereigntyRequirements,
		CommunityStakeholders:   req.CommunityStakeholders,
	})
	setAnalysisHeaders(c, res)

	c.JSON(http.StatusOK, QueryResponse{
		ResponseText:        res.Response.ResponseText,
		CulturalVariant:     string(res.Response.Variant),
		AuthenticityScore:   res.Response.AuthenticityScore,
		CulturalMarkersUsed: res.Response.MarkersUsed,
		ConfidenceScore:     res.Authentication.ConfidenceScore,
		IsAuthentic:         res.Authentication.IsAuthentic,
		Degraded:            res.Degraded,
		ProcessingTime:      res.ProcessingMs / 1000,
		CulturalContext: QueryContext{
			Region:          string(res.Context.Region),
			Variant:         string(res.Context.Variant),
			Language:        res.Context.Language,
			Dialect:         res.Context.Dialect,
			TradeContext:    string(res.Context.TradeContext),
			ComplianceLevel: string(res.Context.ComplianceLevel),
		},
	})
}

func (s *Server) insights(c *gin.Context) {
	var req InsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start := time.Now()
	variant, insights := s.deps.Engine.TopicInsights(req.Topic)
	c.JSON(http.StatusOK, gin.H{
		"topic":            req.Topic,
		"cultural_variant": variant,
		"insights":         insights,
		"processing_time":  time.Since(start).Seconds(),
	})
}

func (s *Server) status(c *gin.Context) {
	snap := s.deps.Engine.Metrics().Snapshot()
	lex := s.deps.Engine.Lexicon()

	storage := gin.H{"driver": s.cfg.Storage.Driver}
	if r := s.deps.Recorder; r != nil {
		storage["queue"] = r.Stats()
		if err := r.Ping(c.Request.Context()); err != nil {
			storage["error"] = err.Error()
		}
	}
	forwarding := gin.H{"enabled": false}
	if f := s.deps.Forwarder; f != nil {
		forwarding = gin.H{"enabled": f.Enabled(), "queue": f.Stats()}
	}

	status := "operational"
	if _, failed := storage["error"]; failed {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                status,
		"version":               buildinfo.Version,
		"uptime_seconds":        time.Since(s.started).Seconds(),
		"total_queries":         snap.TotalRequests,
		"success_rate":          snap.SuccessRate() / 100,
		"average_response_time": snap.Latency.AverageMs / 1000,
		"timestamp":             s.now().UTC(),
		"lexicon":               gin.H{"source": lex.Source(), "version": lex.Version()},
		"scoring":               s.deps.Engine.ScorerMetrics(),
		"storage":               storage,
		"forwarding":            forwarding,
	})
}

func (s *Server) performanceMetrics(c *gin.Context) {
	snap := s.deps.Engine.Metrics().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"total_queries":         snap.TotalRequests,
		"successful_queries":    snap.SuccessfulRequests,
		"failed_queries":        snap.FailedRequests,
		"average_response_time": snap.Latency.AverageMs / 1000,
		"start_time":            snap.Timestamp.Add(-time.Duration(snap.UptimeSeconds) * time.Second).UTC(),
		"latency":               snap.Latency,
		"by_variant":            snap.ByVariant,
	})
}

func (s *Server) resetMetrics(c *gin.Context) {
	s.deps.Engine.Metrics().Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Metrics reset successfully"})
}

func (s *Server) variants(c *gin.Context) {
	entries := s.deps.Engine.Lexicon().Variants()
	out := make([]gin.H, 0, len(entries))
	for _, v := range entries {
		out = append(out, gin.H{
			"value":       v.Name,
			"name":        strings.ToUpper(string(v.Name)),
			"region":      v.Region,
			"description": v.Description,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) regions(c *gin.Context) {
	lex := s.deps.Engine.Lexicon()
	buckets := lex.Regions()
	out := make([]gin.H, 0, len(buckets))
	for _, b := range buckets {
		name := strings.ToUpper(b.Name)
		item := gin.H{
			"value":       b.Name,
			"name":        name,
			"description": fmt.Sprintf("%s cultural region", name),
		}
		if v, ok := lex.VariantFor(cultural.Region(b.Name)); ok {
			item["variant"] = v
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

var demoQueries = []string{
	"How can I build a strong community?",
	"What's the best way to solve problems creatively?",
	"How do I build trust in relationships?",
	"What's the smart way to handle challenges?",
	"How can I use my network effectively?",
}

func (s *Server) demo(c *gin.Context) {
	results := make([]gin.H, 0, len(demoQueries))
	for _, q := range demoQueries {
		res := s.deps.Engine.Process(c.Request.Context(), pipeline.Request{Text: q, Language: "en"})
		results = append(results, gin.H{
			"query":              q,
			"response":           synth.Truncate(res.Response.ResponseText, 103),
			"cultural_variant":   res.Response.Variant,
			"authenticity_score": res.Response.AuthenticityScore,
			"detected_region":    res.Context.Region,
			"degraded":           res.Degraded,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Demo completed",
		"total_queries": len(demoQueries),
		"results":       results,
	})
}

func (s *Server) describeTool(c *gin.Context) {
	c.JSON(http.StatusOK, toolDescriptor)
}

