// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/assessment"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
)

// Classify runs text through the pipeline once and writes the result as
// indented JSON. Nothing is persisted or forwarded.
func Classify(ctx context.Context, cfg *config.Config, req pipeline.Request, w io.Writer) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("classify: text is required")
	}
	lex, err := lexicon.OpenStore(cfg.Engine.LexiconPath)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	res := pipeline.FromConfig(cfg, lex, nil, nil, nil).Process(ctx, req)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("classify: failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// ValidateLexicon loads the lexicon at path (the embedded one when empty)
// and writes a short summary. It returns the load error unchanged.
func ValidateLexicon(path string, w io.Writer) error {
	var (
		lex *lexicon.Lexicon
		err error
	)
	if path == "" {
		lex = lexicon.Default()
	} else if lex, err = lexicon.LoadFile(path); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "lexicon %s: version %d, %d variants, %d regions, %d trade contexts, default variant %s\n",
		lex.Source(), lex.Version(), len(lex.Variants()), len(lex.Regions()), len(lex.TradeContexts()), lex.DefaultVariant())
	return err
}

// ValidateRules compiles the assessment rule table at path (the embedded
// one when empty).
func ValidateRules(path string, w io.Writer) error {
	if _, err := assessment.LoadRules(path); err != nil {
		return err
	}
	name := path
	if name == "" {
		name = "embedded"
	}
	_, err := fmt.Fprintf(w, "assessment rules %s: ok\n", name)
	return err
}
