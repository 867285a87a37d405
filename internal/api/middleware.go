package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/store"
	log "github.com/sirupsen/logrus"
)

const (
	headerRequestID = "X-Request-Id"
	headerAPIKey    = "X-API-Key"

	// Context keys set by pipeline handlers for the request log.
	keyRegion       = "anisa.region"
	keyVariant      = "anisa.variant"
	keyAuthenticity = "anisa.authenticity"
	keyPanx         = "anisa.panx"
	keyForwarded    = "anisa.forwarded"
)

func recoverJSON(c *gin.Context, err any) {
	log.Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// requestID propagates X-Request-Id, minting one when the caller sent none.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// accessLog logs each request, feeds the Prometheus series and queues an
// anisa_metrics row for API calls.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.deps.Collectors.ObserveRequest(route, c.Request.Method, status, elapsed)

		entry := log.WithFields(log.Fields{
			"request_id": c.GetString(headerRequestID),
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if status >= http.StatusInternalServerError {
			entry.Errorf("%s %s", c.Request.Method, c.Request.URL.Path)
		} else {
			entry.Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
		}

		if s.deps.Recorder != nil && strings.HasPrefix(route, "/api/") {
			s.deps.Recorder.RecordMetric(&store.MetricRecord{
				Endpoint:          route,
				Method:            c.Request.Method,
				StatusCode:        status,
				ResponseTimeMs:    float64(elapsed) / float64(time.Millisecond),
				Region:            c.GetString(keyRegion),
				Variant:           c.GetString(keyVariant),
				AuthenticityScore: c.GetFloat64(keyAuthenticity),
				PanxIntegrated:    c.GetBool(keyPanx),
				CortexForwarded:   c.GetBool(keyForwarded),
				Timestamp:         start.UTC(),
			})
		}
	}
}

// cors answers preflight requests and sets the allow headers for the
// configured origins. "*" allows any origin.
func cors(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || slices.Contains(origins, origin)) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-Id")
			h.Set("Access-Control-Expose-Headers", "X-Request-Id, X-ANISA-Region, X-ANISA-Variant, X-ANISA-Authenticity")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions && origin != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAPIKey rejects requests whose X-API-Key does not match the
// configured secret. It is a no-op when no key is configured.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.APIKeyMatches(c.GetHeader(headerAPIKey)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// timeout bounds the request context by the configured processing budget.
func (s *Server) timeout() gin.HandlerFunc {
	budget := time.Duration(s.cfg.RequestTimeoutSeconds) * time.Second
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), budget)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
