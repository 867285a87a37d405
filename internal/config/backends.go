package config

import (
	"net/url"
	"strings"
)

// Storage drivers understood by the persistence layer.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StorageConfig configures the relational store used to keep analyses.
type StorageConfig struct {
	// Driver selects the backend: "sqlite", "postgres" or "none".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the database file path (sqlite) or connection URL (postgres).
	DSN string `yaml:"dsn" json:"-"`
	// QueueSize bounds the number of pending writes.
	QueueSize int `yaml:"queue-size" json:"queue-size"`
	// WriteTimeoutMs is the budget of a single write.
	WriteTimeoutMs int `yaml:"write-timeout-ms" json:"write-timeout-ms"`
}

// ArchiveConfig configures the S3-compatible archive of analyses.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access-key" json:"-"`
	SecretKey string `yaml:"secret-key" json:"-"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	UseSSL    bool   `yaml:"use-ssl" json:"use-ssl"`
	Region    string `yaml:"region" json:"region"`
}

// CortexConfig configures event forwarding to the analytics service.
type CortexConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// URL is the base URL; events are posted to <URL>/cortex/ingest.
	URL    string `yaml:"url" json:"url"`
	APIKey string `yaml:"api-key" json:"-"`
	// SigningSecret enables the HMAC-SHA256 X-Signature header when set.
	SigningSecret    string `yaml:"signing-secret" json:"-"`
	MaxAttempts      int    `yaml:"max-attempts" json:"max-attempts"`
	InitialBackoffMs int    `yaml:"initial-backoff-ms" json:"initial-backoff-ms"`
	MaxBackoffMs     int    `yaml:"max-backoff-ms" json:"max-backoff-ms"`
	TimeoutMs        int    `yaml:"timeout-ms" json:"timeout-ms"`
	QueueSize        int    `yaml:"queue-size" json:"queue-size"`
}

// SanitizeStorage normalizes the driver name and clamps queue settings.
func (cfg *Config) SanitizeStorage() {
	s := &cfg.Storage
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case DriverSQLite, DriverPostgres, DriverNone:
	case "sqlite3":
		s.Driver = DriverSQLite
	case "postgresql", "pgx":
		s.Driver = DriverPostgres
	case "":
		s.Driver = DriverNone
	default:
		s.Driver = DriverNone
	}
	s.DSN = strings.TrimSpace(s.DSN)
	if s.DSN == "" && s.Driver != DriverSQLite {
		s.Driver = DriverNone
	}
	if s.DSN == "" && s.Driver == DriverSQLite {
		s.DSN = "anisa.db"
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 256
	}
	if s.WriteTimeoutMs <= 0 {
		s.WriteTimeoutMs = 2000
	}
}

// SanitizeArchive disables the archive when it cannot be reached.
func (cfg *Config) SanitizeArchive() {
	a := &cfg.Archive
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	a.Endpoint = strings.TrimPrefix(strings.TrimPrefix(a.Endpoint, "https://"), "http://")
	a.Bucket = strings.TrimSpace(a.Bucket)
	a.Prefix = strings.Trim(strings.TrimSpace(a.Prefix), "/")
	if a.Endpoint == "" || a.Bucket == "" {
		a.Enabled = false
	}
}

// SanitizeCortex trims the base URL and clamps the retry policy.
func (cfg *Config) SanitizeCortex() {
	c := &cfg.Cortex
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	if c.URL == "" {
		c.Enabled = false
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxAttempts > 10 {
		c.MaxAttempts = 10
	}
	if c.InitialBackoffMs <= 0 {
		c.InitialBackoffMs = 500
	}
	if c.MaxBackoffMs < c.InitialBackoffMs {
		c.MaxBackoffMs = c.InitialBackoffMs
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 5000
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

// RedactDSN hides the password of a connection URL for logging.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
