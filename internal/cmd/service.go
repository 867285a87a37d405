// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/api"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/assessment"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/forward"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/logging"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful stop of the server and the drain of
// the background queues.
const shutdownTimeout = 30 * time.Second

// latencySamples is the size of the latency window kept for /performance/metrics.
const latencySamples = 1000

// Service owns every long-lived component of a running ANISA process.
type Service struct {
	cfg        *config.Config
	lexicon    *lexicon.Store
	engine     *pipeline.Engine
	recorder   *store.Recorder
	forwarder  *forward.Forwarder
	server     *api.Server
	collectors *metrics.Collectors

	shutdownOnce sync.Once
}

// NewService wires the lexicon, pipeline, persistence, forwarding and HTTP
// layers from cfg. Storage and archive failures degrade to no persistence;
// a broken lexicon or rule table is fatal.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("anisa: config is nil")
	}

	lex, err := lexicon.OpenStore(cfg.Engine.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("anisa: failed to load lexicon: %w", err)
	}
	rules, err := assessment.LoadRules(cfg.Assessment.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("anisa: failed to load assessment rules: %w", err)
	}

	col := metrics.NewCollectors()
	col.SetLexiconVariants(len(lex.Current().Variants()))
	lex.OnReload(func(l *lexicon.Lexicon) {
		col.ObserveLexiconReload(len(l.Variants()))
	})
	engine := pipeline.FromConfig(cfg, lex, metrics.New(latencySamples), col, nil)

	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		log.Warnf("storage unavailable, analyses will not be persisted: %v", err)
		st = store.Nop{}
	} else {
		log.Infof("storage: driver=%s dsn=%s", cfg.Storage.Driver, config.RedactDSN(cfg.Storage.DSN))
	}

	archive, err := store.NewArchive(ctx, cfg.Archive)
	if err != nil {
		log.Warnf("archive unavailable, analyses will not be archived: %v", err)
		archive = nil
	}

	recorder := store.NewRecorder(st, archive, col, cfg.Storage.QueueSize,
		time.Duration(cfg.Storage.WriteTimeoutMs)*time.Millisecond)

	fwd := forward.New(cfg.Cortex, col)
	if fwd.Enabled() {
		log.Infof("cortex forwarding enabled: %s (api key %s)", cfg.Cortex.URL, logging.MaskSecret(cfg.Cortex.APIKey))
	}

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Engine:     engine,
		Assessor:   assessment.NewAssessor(rules, lex),
		Recorder:   recorder,
		Forwarder:  fwd,
		Collectors: col,
	})

	return &Service{
		cfg:        cfg,
		lexicon:    lex,
		engine:     engine,
		recorder:   recorder,
		forwarder:  fwd,
		server:     server,
		collectors: col,
	}, nil
}

// Run serves until ctx is done or the server fails, then shuts down.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("anisa: service is nil")
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Errorf("service shutdown returned error: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.server.Start()
	})
	if s.cfg.Engine.WatchLexicon && s.lexicon.Path() != "" {
		g.Go(func() error {
			if err := s.lexicon.Watch(gctx); err != nil {
				log.Warnf("lexicon watcher stopped: %v", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown stops the server and drains the persistence and forwarding
// queues. It is safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Stop(ctx); err != nil {
			log.Errorf("error stopping API server: %v", err)
			shutdownErr = err
		}
		if err := s.forwarder.Close(ctx); err != nil {
			log.Errorf("failed to drain cortex queue: %v", err)
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
		if err := s.recorder.Close(ctx); err != nil {
			log.Errorf("failed to drain storage queue: %v", err)
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}
