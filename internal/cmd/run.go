// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmd provides the command-line operations of the ANISA server:
// running the service, one-shot classification and lexicon validation.
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	log "github.com/sirupsen/logrus"
)

// StartService builds and runs the ANISA service until SIGINT or SIGTERM.
// It returns false when the service could not be built or exited with an error.
func StartService(cfg *config.Config) bool {
	ctxSignal, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	service, err := NewService(ctxSignal, cfg)
	if err != nil {
		log.Errorf("failed to build ANISA service: %v", err)
		return false
	}

	if err = service.Run(ctxSignal); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("ANISA service exited with error: %v", err)
		return false
	}
	log.Info("ANISA service stopped")
	return true
}
