// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package assessment turns verification events into consensus hints for the
// external multi-party verification process.
package assessment

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrInvalidRules is returned when a rule table cannot be used.
var ErrInvalidRules = errors.New("invalid assessment rules")

// Event is a verification event awaiting consensus.
type Event struct {
	EventType    string         `json:"event_type"`
	Region       string         `json:"region"`
	TradeContext string         `json:"trade_context"`
	Evidence     map[string]any `json:"evidence,omitempty"`
}

// ConsensusHint is the recommendation for one Event.
type ConsensusHint struct {
	RecommendedValidators []string `json:"recommended_validators"`
	MinimumConsensus      float64  `json:"minimum_consensus"`
	CulturalRisks         []string `json:"cultural_risks"`
	ComplianceNotes       []string `json:"compliance_notes"`
	Region                string   `json:"region"`
	Variant               string   `json:"variant"`
}

// Env is what rule conditions are evaluated against. EventType, Region and
// TradeContext are normalized before evaluation.
type Env struct {
	EventType    string
	Region       string
	TradeContext string
	Evidence     map[string]any
}

// HasEvidence reports whether the event carries the evidence key.
func (e Env) HasEvidence(key string) bool {
	_, ok := e.Evidence[key]
	return ok
}

type validatorRule struct {
	Name             string   `yaml:"name"`
	Priority         int      `yaml:"priority"`
	When             string   `yaml:"when"`
	Validators       []string `yaml:"validators"`
	MinimumConsensus float64  `yaml:"minimum-consensus"`

	program *vm.Program
}

type textRule struct {
	Name string `yaml:"name"`
	When string `yaml:"when"`
	Text string `yaml:"text"`

	program *vm.Program
}

type ruleFile struct {
	Validators []*validatorRule `yaml:"validators"`
	Default    validatorRule    `yaml:"default"`
	Risks      []*textRule      `yaml:"risks"`
	Notes      []*textRule      `yaml:"notes"`
}

// Rules is a compiled rule table. It is immutable and safe for concurrent use.
type Rules struct {
	validators []*validatorRule
	fallback   validatorRule
	risks      []*textRule
	notes      []*textRule
}

// DefaultRules returns the embedded rule table.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded assessment rules: %v", err))
	}
	return r
}

// LoadRules reads a rule table from path. An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assessment rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules compiles a YAML rule table. Every condition is compiled up front
// so that a broken table is rejected at load time.
func ParseRules(data []byte) (*Rules, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if len(f.Default.Validators) == 0 {
		return nil, fmt.Errorf("%w: default validators are required", ErrInvalidRules)
	}

	for _, r := range f.Validators {
		if err := checkConsensus(r.Name, r.MinimumConsensus); err != nil {
			return nil, err
		}
		p, err := compile(r.Name, r.When)
		if err != nil {
			return nil, err
		}
		r.program = p
	}
	if err := checkConsensus("default", f.Default.MinimumConsensus); err != nil {
		return nil, err
	}
	for _, r := range slices.Concat(f.Risks, f.Notes) {
		p, err := compile(r.Name, r.When)
		if err != nil {
			return nil, err
		}
		r.program = p
	}

	// Stable so that equal priorities keep file order.
	sort.SliceStable(f.Validators, func(i, j int) bool {
		return f.Validators[i].Priority > f.Validators[j].Priority
	})
	return &Rules{validators: f.Validators, fallback: f.Default, risks: f.Risks, notes: f.Notes}, nil
}

func checkConsensus(name string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%w: rule %q: minimum-consensus %v outside (0, 1]", ErrInvalidRules, name, v)
	}
	return nil
}

func compile(name, condition string) (*vm.Program, error) {
	if condition == "" {
		condition = "true"
	}
	p, err := expr.Compile(condition, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile condition of rule %q: %v", ErrInvalidRules, name, err)
	}
	return p, nil
}

func matches(name string, p *vm.Program, env Env) bool {
	out, err := expr.Run(p, env)
	if err != nil {
		log.Warnf("assessment rule %q failed: %v", name, err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// LexiconSource yields the lexicon used to map regions to variants.
type LexiconSource interface {
	Current() *lexicon.Lexicon
}

// Assessor produces ConsensusHints.
type Assessor struct {
	rules  *Rules
	source LexiconSource
}

// NewAssessor creates an Assessor. A nil rules uses DefaultRules.
func NewAssessor(rules *Rules, source LexiconSource) *Assessor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Assessor{rules: rules, source: source}
}

// Assess evaluates evt against the rule table.
func (a *Assessor) Assess(evt Event) ConsensusHint {
	env := Env{
		EventType:    lexicon.Normalize(evt.EventType),
		Region:       lexicon.Normalize(evt.Region),
		TradeContext: lexicon.Normalize(evt.TradeContext),
		Evidence:     evt.Evidence,
	}

	chosen := &a.rules.fallback
	for _, r := range a.rules.validators {
		if matches(r.Name, r.program, env) {
			chosen = r
			break
		}
	}

	hint := ConsensusHint{
		RecommendedValidators: slices.Clone(chosen.Validators),
		MinimumConsensus:      chosen.MinimumConsensus,
		CulturalRisks:         fired(a.rules.risks, env),
		ComplianceNotes:       fired(a.rules.notes, env),
	}

	lex := a.source.Current()
	region := cultural.Region(env.Region)
	if !lex.HasRegion(region) {
		region = lex.DefaultRegion()
	}
	variant, ok := lex.VariantFor(region)
	if !ok {
		variant = lex.DefaultVariant()
	}
	hint.Region = string(region)
	hint.Variant = string(variant)
	return hint
}

func fired(rules []*textRule, env Env) []string {
	out := []string{}
	for _, r := range rules {
		if matches(r.Name, r.program, env) {
			out = append(out, r.Text)
		}
	}
	return out
}
