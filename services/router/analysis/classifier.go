// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis implements the cross-region diff engine: per-region
// response classification and scoring, aggregate bias metrics, key
// narrative differences, and deterministic risk classification.
//
// # Description
//
// All scoring is lexicon-driven heuristics configured in the scoring
// section of the service config. The heuristics are tunable signals for
// human review, not ground truth; every lexicon and threshold can be
// changed (and hot-reloaded) without touching this package.
package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
)

// Classifier assigns a coarse ResponseClass to one regional response.
//
// # Classification Rules
//
// Applied in order:
//  1. A failed job is a technical failure, never a refusal: infrastructure
//     problems must not inflate censorship metrics.
//  2. Any refusal phrase or pattern hit marks a content refusal, regardless
//     of length: models often pad refusals with pleasantries.
//  3. Responses at or above the substantive length floor are substantive.
//  4. Anything else (short, empty, no refusal markers) is unknown.
type Classifier struct {
	phrases   []string
	patterns  []*regexp.Regexp
	minLength int
}

// NewClassifier compiles a classifier from the scoring config. Invalid
// refusal patterns are rejected rather than skipped, so a bad hot-reload
// cannot silently drop detection coverage.
func NewClassifier(cfg config.ScoringConfig) (*Classifier, error) {
	c := &Classifier{
		phrases:   make([]string, 0, len(cfg.RefusalPhrases)),
		minLength: cfg.MinSubstantiveLength,
	}
	for _, p := range cfg.RefusalPhrases {
		c.phrases = append(c.phrases, strings.ToLower(p))
	}
	for _, p := range cfg.RefusalPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("refusal pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	if c.minLength <= 0 {
		c.minLength = 200
	}
	return c, nil
}

// Classify returns the class of one result plus the refusal indicators
// that matched, for inclusion in the per-region score.
func (c *Classifier) Classify(res *datatypes.JobResult) (datatypes.ResponseClass, []string) {
	if res == nil {
		return datatypes.ClassUnknown, nil
	}
	if res.Status == datatypes.StatusFailed {
		return datatypes.ClassTechnicalFailure, nil
	}
	if res.Status != datatypes.StatusCompleted {
		return datatypes.ClassUnknown, nil
	}

	lower := strings.ToLower(res.Response)
	var indicators []string
	for _, phrase := range c.phrases {
		if strings.Contains(lower, phrase) {
			indicators = append(indicators, phrase)
		}
	}
	for _, re := range c.patterns {
		if match := re.FindString(res.Response); match != "" {
			indicators = append(indicators, strings.ToLower(match))
		}
	}
	if len(indicators) > 0 {
		return datatypes.ClassContentRefusal, indicators
	}
	if len(res.Response) >= c.minLength {
		return datatypes.ClassSubstantive, nil
	}
	return datatypes.ClassUnknown, nil
}
