// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the ANISA server.
// It handles loading and parsing YAML configuration files, applies environment
// overrides, and provides structured access to the engine, scoring, storage and
// forwarding settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the port the API server binds when none is configured.
const DefaultPort = 8083

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces.
	Host string `yaml:"host" json:"-"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables or disables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogMaxSizeMB is the size at which the active log file is rotated.
	LogMaxSizeMB int `yaml:"log-max-size-mb" json:"log-max-size-mb"`

	// LogMaxBackups is the number of rotated log files kept on disk. Zero keeps all of them.
	LogMaxBackups int `yaml:"log-max-backups" json:"log-max-backups"`

	// APIKey is the optional shared secret expected in the X-API-Key header.
	// Either plaintext or a bcrypt hash. Empty disables the check.
	APIKey string `yaml:"api-key" json:"-"`

	// CORSOrigins lists the origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors-origins" json:"cors-origins"`

	// MaxConcurrentRequests bounds the number of simultaneously served connections.
	MaxConcurrentRequests int `yaml:"max-concurrent-requests" json:"max-concurrent-requests"`

	// RequestTimeoutSeconds is the per-request processing budget.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds" json:"request-timeout-seconds"`

	// Engine configures the classification and response pipeline.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Scoring configures the authenticity score blend.
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`

	// Assessment configures the consensus hint rule table.
	Assessment AssessmentConfig `yaml:"assessment" json:"assessment"`

	// Storage configures the best-effort persistence of analyses.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Archive configures the optional object-storage copy of analyses.
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Cortex configures forwarding of analysis events to the analytics service.
	Cortex CortexConfig `yaml:"cortex" json:"cortex"`
}

// EngineConfig holds pipeline settings.
type EngineConfig struct {
	// MinAuthenticityScore is the threshold at which a text is considered authentic.
	MinAuthenticityScore float64 `yaml:"min-authenticity-score" json:"min-authenticity-score"`
	// MaxResponseLength is the character budget of a synthesized response.
	MaxResponseLength int `yaml:"max-response-length" json:"max-response-length"`
	// MaxCulturalMarkers caps the markers reported with a response.
	MaxCulturalMarkers int `yaml:"max-cultural-markers" json:"max-cultural-markers"`
	// EnableDialectDetection toggles regional dialect detection.
	EnableDialectDetection bool `yaml:"enable-dialect-detection" json:"enable-dialect-detection"`
	// EnableResponseEnhancement toggles the insight clause appended to responses.
	EnableResponseEnhancement bool `yaml:"enable-response-enhancement" json:"enable-response-enhancement"`
	// EnableVariantSwitching lets callers override the detected variant.
	EnableVariantSwitching bool `yaml:"enable-variant-switching" json:"enable-variant-switching"`
	// SupportedLanguages lists language codes the service answers for.
	SupportedLanguages []string `yaml:"supported-languages" json:"supported-languages"`
	// DefaultLanguage is used when detection finds no cue.
	DefaultLanguage string `yaml:"default-language" json:"default-language"`
	// LexiconPath points at an external lexicon file. Empty uses the embedded lexicon.
	LexiconPath string `yaml:"lexicon-path" json:"lexicon-path"`
	// WatchLexicon reloads the external lexicon when the file changes.
	WatchLexicon bool `yaml:"watch-lexicon" json:"watch-lexicon"`
}

// ScoringConfig holds the weights of the authenticity blend.
type ScoringConfig struct {
	CulturalWeight        float64 `yaml:"cultural-weight" json:"cultural-weight"`
	ComplianceWeight      float64 `yaml:"compliance-weight" json:"compliance-weight"`
	BucketCoverage        float64 `yaml:"bucket-coverage" json:"bucket-coverage"`
	EmptyBucketConfidence float64 `yaml:"empty-bucket-confidence" json:"empty-bucket-confidence"`
}

// AssessmentConfig holds the event assessment rule source.
type AssessmentConfig struct {
	// RulesPath points at an external rules file. Empty uses the embedded rules.
	RulesPath string `yaml:"rules-path" json:"rules-path"`
}

// DefaultConfig returns a configuration populated with the documented defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (cfg *Config) setDefaults() {
	cfg.Host = ""
	cfg.Port = DefaultPort
	cfg.LogMaxSizeMB = 10
	cfg.CORSOrigins = []string{"*"}
	cfg.MaxConcurrentRequests = 100
	cfg.RequestTimeoutSeconds = 30

	cfg.Engine.MinAuthenticityScore = 0.7
	cfg.Engine.MaxResponseLength = 500
	cfg.Engine.MaxCulturalMarkers = 10
	cfg.Engine.EnableDialectDetection = true
	cfg.Engine.EnableResponseEnhancement = true
	cfg.Engine.EnableVariantSwitching = true
	cfg.Engine.SupportedLanguages = []string{"en", "fr", "es", "ar", "zh", "hi"}
	cfg.Engine.DefaultLanguage = "en"
	cfg.Engine.WatchLexicon = true

	cfg.Scoring.CulturalWeight = 0.6
	cfg.Scoring.ComplianceWeight = 0.4
	cfg.Scoring.BucketCoverage = 0.3
	cfg.Scoring.EmptyBucketConfidence = 0.5

	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.DSN = "anisa.db"
	cfg.Storage.QueueSize = 256
	cfg.Storage.WriteTimeoutMs = 2000

	cfg.Archive.Bucket = "anisa-analyses"
	cfg.Archive.Prefix = "analyses"

	cfg.Cortex.MaxAttempts = 3
	cfg.Cortex.InitialBackoffMs = 500
	cfg.Cortex.MaxBackoffMs = 4000
	cfg.Cortex.TimeoutMs = 5000
	cfg.Cortex.QueueSize = 256
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, applies defaults and sanitization,
// and returns it.
//
// Parameters:
//   - configFile: The path to the configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the configuration could not be loaded
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing, it returns the default Config.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional {
			if os.IsNotExist(err) || errors.Is(err, syscall.EISDIR) {
				return DefaultConfig(), nil
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg := DefaultConfig()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Sanitize()
	return cfg, nil
}

// Sanitize clamps every numeric setting into its valid range and normalizes
// string lists.
func (cfg *Config) Sanitize() {
	if cfg == nil {
		return
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = 10
	}
	if cfg.LogMaxBackups < 0 {
		cfg.LogMaxBackups = 0
	}
	if cfg.MaxConcurrentRequests < 0 {
		cfg.MaxConcurrentRequests = 0
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.CORSOrigins = normalizeList(cfg.CORSOrigins, false)

	cfg.SanitizeEngine()
	cfg.SanitizeScoring()
	cfg.SanitizeStorage()
	cfg.SanitizeArchive()
	cfg.SanitizeCortex()
}

// SanitizeEngine validates engine thresholds and language settings.
func (cfg *Config) SanitizeEngine() {
	e := &cfg.Engine
	if e.MinAuthenticityScore < 0 {
		e.MinAuthenticityScore = 0
	}
	if e.MinAuthenticityScore > 1 {
		e.MinAuthenticityScore = 1
	}
	if e.MaxResponseLength < 16 {
		e.MaxResponseLength = 16 // room for a greeting plus the ellipsis
	}
	if e.MaxCulturalMarkers <= 0 {
		e.MaxCulturalMarkers = 10
	}
	e.SupportedLanguages = normalizeList(e.SupportedLanguages, true)
	if len(e.SupportedLanguages) == 0 {
		e.SupportedLanguages = []string{"en"}
	}
	e.DefaultLanguage = strings.ToLower(strings.TrimSpace(e.DefaultLanguage))
	if e.DefaultLanguage == "" {
		e.DefaultLanguage = "en"
	}
	e.LexiconPath = strings.TrimSpace(e.LexiconPath)
}

// SanitizeScoring normalizes the blend weights so they sum to one and keeps the
// coverage factor in (0, 1].
func (cfg *Config) SanitizeScoring() {
	s := &cfg.Scoring
	if s.CulturalWeight < 0 {
		s.CulturalWeight = 0
	}
	if s.ComplianceWeight < 0 {
		s.ComplianceWeight = 0
	}
	sum := s.CulturalWeight + s.ComplianceWeight
	if sum == 0 {
		s.CulturalWeight, s.ComplianceWeight = 0.6, 0.4
	} else if sum != 1 {
		s.CulturalWeight /= sum
		s.ComplianceWeight /= sum
	}
	if s.BucketCoverage <= 0 || s.BucketCoverage > 1 {
		s.BucketCoverage = 0.3
	}
	if s.EmptyBucketConfidence < 0 || s.EmptyBucketConfidence > 1 {
		s.EmptyBucketConfidence = 0.5
	}
}

// APIKeyMatches reports whether the presented key matches the configured one.
// A bcrypt-hashed configuration value is compared with bcrypt; plaintext values
// are compared in constant time.
func (cfg *Config) APIKeyMatches(presented string) bool {
	if cfg == nil || cfg.APIKey == "" {
		return true
	}
	if presented == "" {
		return false
	}
	if looksLikeBcrypt(cfg.APIKey) {
		return bcrypt.CompareHashAndPassword([]byte(cfg.APIKey), []byte(presented)) == nil
	}
	return constantTimeEqual(cfg.APIKey, presented)
}

// HashAPIKey replaces a plaintext API key with its bcrypt hash.
func (cfg *Config) HashAPIKey() error {
	if cfg.APIKey == "" || looksLikeBcrypt(cfg.APIKey) {
		return nil
	}
	hashed, err := hashSecret(cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to hash api key: %w", err)
	}
	cfg.APIKey = hashed
	return nil
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return len(s) > 4 && (s[:4] == "$2a$" || s[:4] == "$2b$" || s[:4] == "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func normalizeList(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
