// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"sort"
	"strings"

	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
)

// Scorer computes the per-region heuristic scores from the configured
// lexicons. All scores land in [0,1].
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer builds a scorer over the given scoring config.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the full RegionScore for one completed response. The
// classification and refusal indicators come from the classifier so the
// censored flag and the bias boost agree by construction.
func (s *Scorer) Score(region string, res *datatypes.JobResult,
	class datatypes.ResponseClass, indicators []string) *datatypes.RegionScore {

	censored := class == datatypes.ClassContentRefusal
	text := res.Response
	lower := strings.ToLower(text)

	keywordComponent, matched := s.keywordComponent(lower)
	sentimentComponent := s.sentimentComponent(lower)
	lengthComponent := lengthComponent(len(text))

	bias := s.cfg.KeywordWeight*keywordComponent +
		s.cfg.SentimentWeight*sentimentComponent +
		s.cfg.LengthWeight*lengthComponent
	if censored {
		bias += s.cfg.CensoredBoost
	}

	return &datatypes.RegionScore{
		Region:               region,
		Classification:       class,
		BiasScore:            clamp01(bias),
		IsCensored:           censored,
		FactualAccuracy:      s.factualAccuracy(lower),
		PoliticalSensitivity: s.politicalSensitivity(lower),
		Keywords:             matched,
		RefusalIndicators:    indicators,
		ResponseLength:       len(text),
	}
}

// keywordComponent starts neutral at 0.5 and shifts by each category's
// weight when any of its keywords appear. Returns the component plus the
// matched keywords, sorted for deterministic output.
func (s *Scorer) keywordComponent(lower string) (float64, []string) {
	component := 0.5
	var matched []string
	for _, category := range sortedCategoryNames(s.cfg.KeywordCategories) {
		cat := s.cfg.KeywordCategories[category]
		hit := false
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
				hit = true
			}
		}
		if hit {
			component += cat.Weight
		}
	}
	sort.Strings(matched)
	return clamp01(component), matched
}

// sentimentComponent maps the positive/negative word skew onto [0,1],
// with 0.5 meaning neutral or no sentiment words at all.
func (s *Scorer) sentimentComponent(lower string) float64 {
	pos := countHits(lower, s.cfg.PositiveWords)
	neg := countHits(lower, s.cfg.NegativeWords)
	if pos+neg == 0 {
		return 0.5
	}
	skew := float64(pos-neg) / float64(pos+neg)
	return clamp01(0.5 + skew/2)
}

// factualAccuracy is the fraction of reference facts present in the
// response. A refusal mentions almost none of them; a substantive account
// mentions most.
func (s *Scorer) factualAccuracy(lower string) float64 {
	if len(s.cfg.ReferenceFacts) == 0 {
		return 0
	}
	hits := 0
	for _, fact := range s.cfg.ReferenceFacts {
		if strings.Contains(lower, strings.ToLower(fact)) {
			hits++
		}
	}
	return float64(hits) / float64(len(s.cfg.ReferenceFacts))
}

// politicalSensitivity is the sensitive-term hit density scaled so typical
// charged responses land mid-range rather than pinned near zero.
func (s *Scorer) politicalSensitivity(lower string) float64 {
	words := len(strings.Fields(lower))
	if words == 0 {
		return 0
	}
	hits := countHits(lower, s.cfg.SensitiveTerms)
	scale := s.cfg.SensitivityScale
	if scale <= 0 {
		scale = 12
	}
	return clamp01(float64(hits) / float64(words) * scale)
}

// lengthComponent treats brevity as a bias signal: responses at or beyond
// 1000 characters contribute nothing, a near-empty response contributes
// fully. Truncation-by-omission is the cheapest form of censorship.
func lengthComponent(length int) float64 {
	const fullLength = 1000.0
	return clamp01(1 - float64(length)/fullLength)
}

func countHits(lower string, terms []string) int {
	hits := 0
	for _, t := range terms {
		hits += strings.Count(lower, strings.ToLower(t))
	}
	return hits
}

func sortedCategoryNames(categories map[string]config.KeywordCategory) []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
