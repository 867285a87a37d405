// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classifier assigns a region, a variant and a trade context to a text
// by counting lexicon keyword hits.
package classifier

import (
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
	log "github.com/sirupsen/logrus"
)

// Score is the raw hit count of one category.
type Score struct {
	Name string `json:"name"`
	Hits int    `json:"hits"`
}

// Classification is the outcome of Classify.
type Classification struct {
	Region            cultural.Region          `json:"region"`
	Variant           cultural.Variant         `json:"variant"`
	TradeContext      cultural.TradeContext    `json:"trade_context"`
	ComplianceFactors []string                 `json:"compliance_factors"`
	ComplianceLevel   cultural.ComplianceLevel `json:"compliance_level"`

	// Defaulted marks the axes that fell back because nothing matched.
	Defaulted []string `json:"defaulted,omitempty"`

	RegionScores  []Score `json:"region_scores"`
	VariantScores []Score `json:"variant_scores"`
	TradeScores   []Score `json:"trade_scores"`
}

// Classifier classifies texts against the lexicon currently held by a store.
type Classifier struct {
	store *lexicon.Store
}

// New creates a Classifier backed by store.
//
// Parameters:
//   - store: The lexicon store consulted on every call
//
// Returns:
//   - *Classifier: A new classifier instance
func New(store *lexicon.Store) *Classifier {
	return &Classifier{store: store}
}

// Classify runs Classify against the current lexicon.
func (c *Classifier) Classify(text string) Classification {
	return Classify(c.store.Current(), text)
}

// Classify scores every category of each axis and picks the highest count.
// Ties go to the category declared first. When every category of an axis
// scores zero the lexicon defaults apply: the default variant, the region of
// that variant, and the default trade context. Counts are not normalized by
// bucket size.
func Classify(lex *lexicon.Lexicon, text string) Classification {
	folded := lexicon.Normalize(text)

	var out Classification

	variants := lex.Variants()
	out.VariantScores = make([]Score, len(variants))
	for i, v := range variants {
		out.VariantScores[i] = Score{Name: string(v.Name), Hits: lexicon.Count(folded, v.Keywords)}
	}
	out.RegionScores = scoreBuckets(folded, lex.Regions())
	out.TradeScores = scoreBuckets(folded, lex.TradeContexts())

	if name, ok := argmax(out.VariantScores); ok {
		out.Variant = cultural.Variant(name)
	} else {
		out.Variant = lex.DefaultVariant()
		out.Defaulted = append(out.Defaulted, "variant")
	}
	if name, ok := argmax(out.RegionScores); ok {
		out.Region = cultural.Region(name)
	} else {
		out.Region = lex.DefaultRegion()
		out.Defaulted = append(out.Defaulted, "region")
	}
	if name, ok := argmax(out.TradeScores); ok {
		out.TradeContext = cultural.TradeContext(name)
	} else {
		out.TradeContext = lex.DefaultTradeContext()
		out.Defaulted = append(out.Defaulted, "trade_context")
	}

	out.ComplianceFactors = []string{}
	for _, f := range lex.ComplianceFactors() {
		if lexicon.ContainsAny(folded, f.Keywords) {
			out.ComplianceFactors = append(out.ComplianceFactors, f.Name)
		}
	}
	out.ComplianceLevel = cultural.LevelForFactors(len(out.ComplianceFactors))

	log.Debugf("classified text as %s/%s/%s (defaulted=%v)", out.Region, out.Variant, out.TradeContext, out.Defaulted)
	return out
}

func scoreBuckets(folded string, buckets []lexicon.Bucket) []Score {
	scores := make([]Score, len(buckets))
	for i, b := range buckets {
		scores[i] = Score{Name: b.Name, Hits: lexicon.Count(folded, b.Keywords)}
	}
	return scores
}

// argmax returns the first category with the strictly highest positive count.
func argmax(scores []Score) (string, bool) {
	best, bestHits := "", 0
	for _, s := range scores {
		if s.Hits > bestHits {
			best, bestHits = s.Name, s.Hits
		}
	}
	return best, bestHits > 0
}
