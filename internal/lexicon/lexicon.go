// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lexicon holds the keyword tables that drive cultural classification.
//
// A Lexicon is parsed from YAML, validated, normalized and then never mutated.
// Order matters: the declaration order of variants, regions and trade contexts
// is the enumeration order used to break classification ties.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"gopkg.in/yaml.v3"
)

//go:embed default_lexicon.yaml
var defaultLexiconYAML []byte

// maxLexiconBytes guards against oversized or hostile lexicon files.
const maxLexiconBytes = 1 << 20

// Response types a variant may carry templates for.
const (
	ResponseGreeting       = "greeting"
	ResponseProblemSolving = "problem_solving"
	ResponseAdvice         = "advice"
)

var (
	// ErrInvalidLexicon wraps every validation failure.
	ErrInvalidLexicon = errors.New("invalid lexicon")
	// ErrLexiconTooLarge is returned for files above the size limit.
	ErrLexiconTooLarge = errors.New("lexicon file too large")
)

// Cue is a labelled keyword set. It fires when any keyword is present, or
// when all of them are present if RequireAll is set.
type Cue struct {
	Text       string   `yaml:"text" json:"text"`
	Keywords   []string `yaml:"keywords" json:"keywords"`
	RequireAll bool     `yaml:"require-all" json:"require_all,omitempty"`
}

// Templates are the canned replies of one variant, keyed by response type.
type Templates struct {
	Greeting       []string `yaml:"greeting" json:"greeting"`
	ProblemSolving []string `yaml:"problem_solving" json:"problem_solving"`
	Advice         []string `yaml:"advice" json:"advice"`
}

// VariantEntry describes one cultural intelligence variant.
type VariantEntry struct {
	Name          cultural.Variant `yaml:"name" json:"name"`
	Region        cultural.Region  `yaml:"region" json:"region"`
	Description   string           `yaml:"description" json:"description"`
	Keywords      []string         `yaml:"keywords" json:"keywords"`
	Insights      []Cue            `yaml:"insights" json:"insights,omitempty"`
	Nuances       []Cue            `yaml:"nuances" json:"nuances,omitempty"`
	TrustPatterns []Cue            `yaml:"trust-patterns" json:"trust_patterns,omitempty"`
	Templates     Templates        `yaml:"templates" json:"-"`
}

// Bucket is a named keyword list.
type Bucket struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

type document struct {
	Version             int                   `yaml:"version"`
	DefaultVariant      cultural.Variant      `yaml:"default-variant"`
	DefaultTradeContext cultural.TradeContext `yaml:"default-trade-context"`
	Variants            []VariantEntry        `yaml:"variants"`
	Regions             []Bucket              `yaml:"regions"`
	TradeContexts       []Bucket              `yaml:"trade-contexts"`
	ComplianceFactors   []Bucket              `yaml:"compliance-factors"`
}

// Lexicon is an immutable, validated keyword table.
type Lexicon struct {
	doc      document
	source   string
	variants map[cultural.Variant]int
	regions  map[cultural.Region]int
	trades   map[cultural.TradeContext]int
	byRegion map[cultural.Region]cultural.Variant
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the embedded lexicon. It panics if the embedded document is
// invalid, which is a build defect.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Parse(defaultLexiconYAML)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded default is invalid: %v", err))
		}
		lex.source = "embedded"
		defaultLex = lex
	})
	return defaultLex
}

// LoadFile reads and validates a lexicon file.
func LoadFile(path string) (*Lexicon, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat lexicon file: %w", err)
	}
	if info.Size() > maxLexiconBytes {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrLexiconTooLarge, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	lex.source = path
	return lex, nil
}

// Parse decodes, normalizes and validates a YAML lexicon.
func Parse(data []byte) (*Lexicon, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	doc.normalize()
	lex := &Lexicon{doc: doc}
	if err := lex.index(); err != nil {
		return nil, err
	}
	return lex, nil
}

func (d *document) normalize() {
	for i := range d.Variants {
		v := &d.Variants[i]
		v.Name = cultural.Variant(Normalize(string(v.Name)))
		v.Region = cultural.Region(Normalize(string(v.Region)))
		v.Keywords = normalizeKeywords(v.Keywords)
		normalizeCues(v.Insights)
		normalizeCues(v.Nuances)
		normalizeCues(v.TrustPatterns)
	}
	for _, buckets := range [][]Bucket{d.Regions, d.TradeContexts, d.ComplianceFactors} {
		for i := range buckets {
			buckets[i].Name = Normalize(buckets[i].Name)
			buckets[i].Keywords = normalizeKeywords(buckets[i].Keywords)
		}
	}
	d.DefaultVariant = cultural.Variant(Normalize(string(d.DefaultVariant)))
	d.DefaultTradeContext = cultural.TradeContext(Normalize(string(d.DefaultTradeContext)))
}

func normalizeCues(cues []Cue) {
	for i := range cues {
		cues[i].Keywords = normalizeKeywords(cues[i].Keywords)
	}
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = Normalize(kw)
		if kw == "" || slices.Contains(out, kw) {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func (l *Lexicon) index() error {
	d := &l.doc
	if len(d.Variants) == 0 {
		return fmt.Errorf("%w: no variants declared", ErrInvalidLexicon)
	}
	if len(d.Regions) == 0 {
		return fmt.Errorf("%w: no regions declared", ErrInvalidLexicon)
	}
	if len(d.TradeContexts) == 0 {
		return fmt.Errorf("%w: no trade contexts declared", ErrInvalidLexicon)
	}

	l.regions = make(map[cultural.Region]int, len(d.Regions))
	for i, r := range d.Regions {
		if r.Name == "" {
			return fmt.Errorf("%w: region #%d has no name", ErrInvalidLexicon, i+1)
		}
		if _, dup := l.regions[cultural.Region(r.Name)]; dup {
			return fmt.Errorf("%w: duplicate region %q", ErrInvalidLexicon, r.Name)
		}
		l.regions[cultural.Region(r.Name)] = i
	}

	l.variants = make(map[cultural.Variant]int, len(d.Variants))
	l.byRegion = make(map[cultural.Region]cultural.Variant, len(d.Variants))
	for i, v := range d.Variants {
		if v.Name == "" {
			return fmt.Errorf("%w: variant #%d has no name", ErrInvalidLexicon, i+1)
		}
		if _, dup := l.variants[v.Name]; dup {
			return fmt.Errorf("%w: duplicate variant %q", ErrInvalidLexicon, v.Name)
		}
		if _, ok := l.regions[v.Region]; !ok {
			return fmt.Errorf("%w: variant %q references unknown region %q", ErrInvalidLexicon, v.Name, v.Region)
		}
		l.variants[v.Name] = i
		// The first variant declared for a region is its representative.
		if _, taken := l.byRegion[v.Region]; !taken {
			l.byRegion[v.Region] = v.Name
		}
	}

	l.trades = make(map[cultural.TradeContext]int, len(d.TradeContexts))
	for i, t := range d.TradeContexts {
		if t.Name == "" {
			return fmt.Errorf("%w: trade context #%d has no name", ErrInvalidLexicon, i+1)
		}
		if _, dup := l.trades[cultural.TradeContext(t.Name)]; dup {
			return fmt.Errorf("%w: duplicate trade context %q", ErrInvalidLexicon, t.Name)
		}
		l.trades[cultural.TradeContext(t.Name)] = i
	}

	seen := make(map[string]struct{}, len(d.ComplianceFactors))
	for _, f := range d.ComplianceFactors {
		if f.Name == "" {
			return fmt.Errorf("%w: compliance factor without name", ErrInvalidLexicon)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate compliance factor %q", ErrInvalidLexicon, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	if d.DefaultVariant == "" {
		d.DefaultVariant = d.Variants[0].Name
	}
	if _, ok := l.variants[d.DefaultVariant]; !ok {
		return fmt.Errorf("%w: default variant %q is not declared", ErrInvalidLexicon, d.DefaultVariant)
	}
	if d.DefaultTradeContext == "" {
		d.DefaultTradeContext = cultural.TradeContext(d.TradeContexts[0].Name)
	}
	if _, ok := l.trades[d.DefaultTradeContext]; !ok {
		return fmt.Errorf("%w: default trade context %q is not declared", ErrInvalidLexicon, d.DefaultTradeContext)
	}
	return nil
}

// Source names where the lexicon was loaded from.
func (l *Lexicon) Source() string { return l.source }

// Version is the document version declared in the file.
func (l *Lexicon) Version() int { return l.doc.Version }

// DefaultVariant is the fallback variant when nothing matches.
func (l *Lexicon) DefaultVariant() cultural.Variant { return l.doc.DefaultVariant }

// DefaultRegion is the region of the default variant.
func (l *Lexicon) DefaultRegion() cultural.Region {
	return l.doc.Variants[l.variants[l.doc.DefaultVariant]].Region
}

// DefaultTradeContext is the fallback trade context when nothing matches.
func (l *Lexicon) DefaultTradeContext() cultural.TradeContext { return l.doc.DefaultTradeContext }

// Variants returns the variant entries in declaration order.
func (l *Lexicon) Variants() []VariantEntry { return slices.Clone(l.doc.Variants) }

// Regions returns the region buckets in declaration order.
func (l *Lexicon) Regions() []Bucket { return slices.Clone(l.doc.Regions) }

// TradeContexts returns the trade-context buckets in declaration order.
func (l *Lexicon) TradeContexts() []Bucket { return slices.Clone(l.doc.TradeContexts) }

// ComplianceFactors returns the compliance-factor buckets in declaration order.
func (l *Lexicon) ComplianceFactors() []Bucket { return slices.Clone(l.doc.ComplianceFactors) }

// Variant looks up a variant entry.
func (l *Lexicon) Variant(name cultural.Variant) (VariantEntry, bool) {
	i, ok := l.variants[name]
	if !ok {
		return VariantEntry{}, false
	}
	return l.doc.Variants[i], true
}

// HasVariant reports whether the variant is declared.
func (l *Lexicon) HasVariant(name cultural.Variant) bool {
	_, ok := l.variants[name]
	return ok
}

// HasRegion reports whether the region is declared.
func (l *Lexicon) HasRegion(name cultural.Region) bool {
	_, ok := l.regions[name]
	return ok
}

// HasTradeContext reports whether the trade context is declared.
func (l *Lexicon) HasTradeContext(name cultural.TradeContext) bool {
	_, ok := l.trades[name]
	return ok
}

// VariantKeywords returns the keyword bucket of a variant, or nil.
func (l *Lexicon) VariantKeywords(name cultural.Variant) []string {
	i, ok := l.variants[name]
	if !ok {
		return nil
	}
	return l.doc.Variants[i].Keywords
}

// TradeContextKeywords returns the keyword bucket of a trade context, or nil.
func (l *Lexicon) TradeContextKeywords(name cultural.TradeContext) []string {
	i, ok := l.trades[name]
	if !ok {
		return nil
	}
	return l.doc.TradeContexts[i].Keywords
}

// RegionOf returns the region a variant belongs to.
func (l *Lexicon) RegionOf(name cultural.Variant) (cultural.Region, bool) {
	i, ok := l.variants[name]
	if !ok {
		return "", false
	}
	return l.doc.Variants[i].Region, true
}

// VariantFor returns the representative variant of a region.
func (l *Lexicon) VariantFor(region cultural.Region) (cultural.Variant, bool) {
	v, ok := l.byRegion[region]
	return v, ok
}

// Templates returns the reply templates of a variant for a response type.
func (l *Lexicon) Templates(name cultural.Variant, responseType string) []string {
	i, ok := l.variants[name]
	if !ok {
		return nil
	}
	t := l.doc.Variants[i].Templates
	switch responseType {
	case ResponseGreeting:
		return t.Greeting
	case ResponseProblemSolving:
		return t.ProblemSolving
	case ResponseAdvice:
		return t.Advice
	}
	return nil
}
