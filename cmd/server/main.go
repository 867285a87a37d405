// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the ANISA server.
// ANISA turns trade-related text into culturally adapted responses and
// scores verification events for the PANX and Cortex services.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/buildinfo"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cmd"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/logging"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// credentialPattern matches the user:password part of a connection URL.
var credentialPattern = regexp.MustCompile(`(://[^:@/]+):([^@]+)@`)

// validateEnvironmentVariables warns about connection strings that carry
// inline credentials.
func validateEnvironmentVariables() {
	for _, name := range []string{"ANISA_DB_URL", "CORTEX_URL", "ANISA_ARCHIVE_ENDPOINT"} {
		if value, ok := os.LookupEnv(name); ok && credentialPattern.MatchString(value) {
			log.Warnf("environment variable %s contains credentials - consider using a secret manager", name)
		}
	}
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
	_, _ = fmt.Fprintf(out, "  %s [flags]                       run the API server\n", os.Args[0])
	_, _ = fmt.Fprintf(out, "  %s [flags] classify <text>       analyze text once and print the result\n", os.Args[0])
	_, _ = fmt.Fprintf(out, "  %s [flags] lexicon validate [path]\n", os.Args[0])
	_, _ = fmt.Fprintf(out, "  %s [flags] rules validate [path]\n", os.Args[0])
	_, _ = fmt.Fprintf(out, "  %s hash-key <api-key>            print a bcrypt hash for api-key\n", os.Args[0])
	_, _ = fmt.Fprintf(out, "  %s version\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var configPath string
	var lexiconPath string
	var region string
	var language string
	var variant string

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&lexiconPath, "lexicon", "", "Lexicon file overriding engine.lexicon-path")
	flag.StringVar(&region, "region", "", "Region hint for classify")
	flag.StringVar(&language, "language", "", "Language hint for classify")
	flag.StringVar(&variant, "variant", "", "Preferred variant for classify")
	flag.CommandLine.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) > 0 && args[0] == "version" {
		fmt.Println(buildinfo.String())
		return
	}
	if len(args) > 0 && args[0] == "hash-key" {
		os.Exit(runHashKey(args[1:], os.Stdout))
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}
	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}
	validateEnvironmentVariables()

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}
	cfg.ApplyEnvOverrides(os.LookupEnv)
	if lexiconPath != "" {
		cfg.Engine.LexiconPath = lexiconPath
	}

	if len(args) > 0 {
		code := runSubcommand(cfg, args, pipeline.Request{
			RegionHint:       region,
			Language:         language,
			PreferredVariant: variant,
		}, os.Stdout)
		os.Exit(code)
	}

	if err = logging.ConfigureLogOutput(logging.OutputOptions{
		ToFile:     cfg.LoggingToFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Debug:      cfg.Debug,
	}); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	log.Info(buildinfo.String())

	if !cmd.StartService(cfg) {
		os.Exit(1)
	}
}

// runSubcommand executes a one-shot command and returns the process exit code.
func runSubcommand(cfg *config.Config, args []string, hints pipeline.Request, out io.Writer) int {
	var err error
	switch args[0] {
	case "classify":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(os.Stderr, "classify: missing text")
			return 2
		}
		req := hints
		req.Text = strings.Join(args[1:], " ")
		err = cmd.Classify(context.Background(), cfg, req, out)
	case "lexicon", "rules":
		if len(args) < 2 || args[1] != "validate" {
			_, _ = fmt.Fprintf(os.Stderr, "usage: %s validate [path]\n", args[0])
			return 2
		}
		path := ""
		if len(args) > 2 {
			path = args[2]
		}
		if args[0] == "lexicon" {
			if path == "" {
				path = cfg.Engine.LexiconPath
			}
			err = cmd.ValidateLexicon(path, out)
		} else {
			if path == "" {
				path = cfg.Assessment.RulesPath
			}
			err = cmd.ValidateRules(path, out)
		}
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		flag.CommandLine.Usage()
		return 2
	}
	if err != nil {
		log.Error(err)
		return 1
	}
	return 0
}

func runHashKey(args []string, out io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		_, _ = fmt.Fprintln(os.Stderr, "usage: hash-key <api-key>")
		return 2
	}
	cfg := config.DefaultConfig()
	cfg.APIKey = strings.TrimSpace(args[0])
	if err := cfg.HashAPIKey(); err != nil {
		log.Errorf("failed to hash api key: %v", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cfg.APIKey)
	return 0
}
