package config

import (
	"crypto/subtle"
	"os"
	"strconv"
	"strings"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnvOverrides copies ANISA_* and CORTEX_* environment values over the
// file configuration. A nil lookup uses os.LookupEnv.
func (cfg *Config) ApplyEnvOverrides(lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	num := func(dst *int, key string) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	flt := func(dst *float64, key string) {
		if v, ok := lookup(key); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	str(&cfg.Host, "ANISA_HOST")
	num(&cfg.Port, "ANISA_PORT")
	boolean(&cfg.Debug, "ANISA_DEBUG")
	str(&cfg.APIKey, "ANISA_API_KEY")
	num(&cfg.MaxConcurrentRequests, "ANISA_MAX_CONCURRENT_REQUESTS")
	num(&cfg.RequestTimeoutSeconds, "ANISA_REQUEST_TIMEOUT")

	flt(&cfg.Engine.MinAuthenticityScore, "ANISA_MIN_AUTHENTICITY_SCORE")
	num(&cfg.Engine.MaxResponseLength, "ANISA_MAX_RESPONSE_LENGTH")
	num(&cfg.Engine.MaxCulturalMarkers, "ANISA_MAX_CULTURAL_MARKERS")
	boolean(&cfg.Engine.EnableDialectDetection, "ANISA_ENABLE_DIALECT_DETECTION")
	boolean(&cfg.Engine.EnableVariantSwitching, "ANISA_ENABLE_VARIANT_SWITCHING")
	str(&cfg.Engine.LexiconPath, "ANISA_LEXICON_PATH")
	if v, ok := lookup("ANISA_SUPPORTED_LANGUAGES"); ok && strings.TrimSpace(v) != "" {
		cfg.Engine.SupportedLanguages = strings.Split(v, ",")
	}

	flt(&cfg.Scoring.CulturalWeight, "ANISA_CULTURAL_WEIGHT")
	flt(&cfg.Scoring.ComplianceWeight, "ANISA_COMPLIANCE_WEIGHT")

	str(&cfg.Assessment.RulesPath, "ANISA_RULES_PATH")

	str(&cfg.Storage.Driver, "ANISA_DB_DRIVER")
	str(&cfg.Storage.DSN, "ANISA_DB_URL")
	if strings.HasPrefix(cfg.Storage.DSN, "postgres://") || strings.HasPrefix(cfg.Storage.DSN, "postgresql://") {
		cfg.Storage.Driver = DriverPostgres
	}

	str(&cfg.Archive.Endpoint, "ANISA_ARCHIVE_ENDPOINT", "OBJECTSTORE_ENDPOINT")
	str(&cfg.Archive.AccessKey, "ANISA_ARCHIVE_ACCESS_KEY", "OBJECTSTORE_ACCESS_KEY")
	str(&cfg.Archive.SecretKey, "ANISA_ARCHIVE_SECRET_KEY", "OBJECTSTORE_SECRET_KEY")
	str(&cfg.Archive.Bucket, "ANISA_ARCHIVE_BUCKET", "OBJECTSTORE_BUCKET")
	if cfg.Archive.Endpoint != "" && cfg.Archive.AccessKey != "" {
		cfg.Archive.Enabled = true
	}

	str(&cfg.Cortex.URL, "CORTEX_URL")
	str(&cfg.Cortex.APIKey, "CORTEX_API_KEY")
	str(&cfg.Cortex.SigningSecret, "CORTEX_SIGNING_SECRET")
	if cfg.Cortex.URL != "" {
		cfg.Cortex.Enabled = true
	}

	cfg.Sanitize()
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
