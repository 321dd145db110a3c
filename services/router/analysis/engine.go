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
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/observability"
	"github.com/google/uuid"
)

// Engine computes cross-region diff analyses over execution sets.
//
// # Determinism
//
// Analyze is a pure function of (execution set, scoring config) apart from
// AnalysisID and GeneratedAt: regions are iterated in sorted order and
// every metric is threshold-based, so recomputation yields an identical
// analysis. Order of result arrival never changes the outcome.
//
// # Thread Safety
//
// Safe for concurrent Analyze calls. SetScoring (hot reload) swaps the
// compiled scorer and classifier under a write lock.
type Engine struct {
	mu         sync.RWMutex
	cfg        config.ScoringConfig
	scorer     *Scorer
	classifier *Classifier
	metrics    *observability.RouterMetrics
}

// NewEngine builds an engine over the given scoring config.
func NewEngine(cfg config.ScoringConfig, metrics *observability.RouterMetrics) (*Engine, error) {
	e := &Engine{metrics: metrics}
	if err := e.SetScoring(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// SetScoring swaps the scoring config, recompiling the refusal patterns.
// Used by the config hot-reload watcher; a config that fails to compile is
// rejected and the previous one stays active.
func (e *Engine) SetScoring(cfg config.ScoringConfig) error {
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return fmt.Errorf("scoring config rejected: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.scorer = NewScorer(cfg)
	e.classifier = classifier
	return nil
}

// Analyze produces the full cross-region diff for one execution set.
// Aggregates are computed over present (completed) regions only; with
// fewer than two the risk level is insufficient-data, never a fake zero.
func (e *Engine) Analyze(set *datatypes.RegionExecutionSet) *datatypes.DiffAnalysis {
	e.mu.RLock()
	cfg, scorer, classifier := e.cfg, e.scorer, e.classifier
	e.mu.RUnlock()

	analysis := &datatypes.DiffAnalysis{
		AnalysisID:     uuid.NewString(),
		Model:          set.Model,
		QuestionID:     set.QuestionID,
		GeneratedAt:    time.Now().UTC(),
		RegionScores:   make(map[string]*datatypes.RegionScore),
		MissingRegions: append([]string(nil), set.MissingRegions...),
	}
	sort.Strings(analysis.MissingRegions)

	// Score every region with a result; only completed ones feed the
	// aggregates. Failed regions appear as technical failures so the
	// report distinguishes "broken" from "absent".
	var present []string
	for _, region := range sortedRegions(set.Results) {
		res := set.Results[region]
		class, indicators := classifier.Classify(res)
		if class == datatypes.ClassTechnicalFailure || class == datatypes.ClassUnknown && res.Status != datatypes.StatusCompleted {
			analysis.RegionScores[region] = &datatypes.RegionScore{
				Region:         region,
				Classification: class,
			}
			continue
		}
		analysis.RegionScores[region] = scorer.Score(region, res, class, indicators)
		present = append(present, region)
	}

	analysis.Aggregate = aggregate(present, analysis.RegionScores, set.Results)
	analysis.RiskLevel, analysis.Recommendation = classifyRisk(len(present), analysis.Aggregate, cfg.Thresholds)

	if len(present) >= 2 {
		analysis.KeyDifferences = keyDifferences(cfg.DifferenceCategories, present, analysis.RegionScores, set.Results)
	}
	analysis.Summary = summarize(analysis, len(present))

	e.metrics.RecordAnalysis(string(analysis.RiskLevel))
	return analysis
}

// =============================================================================
// Aggregates
// =============================================================================

func aggregate(present []string, scores map[string]*datatypes.RegionScore,
	results map[string]*datatypes.JobResult) datatypes.AggregateMetrics {

	if len(present) < 2 {
		return datatypes.AggregateMetrics{}
	}

	var biases, accuracies []float64
	censored := 0
	for _, region := range present {
		s := scores[region]
		biases = append(biases, s.BiasScore)
		accuracies = append(accuracies, s.FactualAccuracy)
		if s.IsCensored {
			censored++
		}
	}

	texts := make([]string, 0, len(present))
	for _, region := range present {
		texts = append(texts, results[region].Response)
	}

	return datatypes.AggregateMetrics{
		BiasVariance:        variance(biases),
		CensorshipRate:      float64(censored) / float64(len(present)),
		FactualConsistency:  clamp01(1 - math.Sqrt(variance(accuracies))/0.5),
		NarrativeDivergence: narrativeDivergence(texts),
	}
}

// variance is the population variance.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// narrativeDivergence is one minus the mean pairwise Jaccard similarity of
// the responses' vocabulary sets (words longer than three characters).
// Identical accounts score near 0; accounts sharing no vocabulary score 1.
func narrativeDivergence(texts []string) float64 {
	if len(texts) < 2 {
		return 0
	}
	sets := make([]map[string]bool, len(texts))
	for i, t := range texts {
		sets[i] = wordSet(t)
	}
	var sum float64
	var pairs int
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return clamp01(1 - sum/float64(pairs))
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) > 3 {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// =============================================================================
// Key Differences
// =============================================================================

// keyDifferences labels each present region on every configured dimension
// and reports the dimensions where regions actually diverge. The baseline
// is the longest substantive response, the account with the most material
// to compare against.
func keyDifferences(categories []config.DifferenceCategory, present []string,
	scores map[string]*datatypes.RegionScore,
	results map[string]*datatypes.JobResult) []datatypes.KeyDifference {

	baseline := baselineRegion(present, scores)

	var diffs []datatypes.KeyDifference
	for _, cat := range categories {
		values := make(map[string]string, len(present))
		unique := make(map[string]bool)
		for _, region := range present {
			label := labelFor(cat, results[region].Response)
			values[region] = label
			unique[label] = true
		}
		if len(unique) < 2 {
			continue
		}
		severity := "medium"
		if len(unique) >= 3 {
			severity = "high"
		}
		diffs = append(diffs, datatypes.KeyDifference{
			Category:     cat.Name,
			RegionValues: values,
			Severity:     severity,
			Description:  cat.Description,
			Baseline:     baseline,
		})
	}
	return diffs
}

// labelFor assigns the first bucket whose markers appear in the text, or
// the category fallback.
func labelFor(cat config.DifferenceCategory, text string) string {
	lower := strings.ToLower(text)
	for _, bucket := range cat.Buckets {
		for _, marker := range bucket.Markers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return bucket.Label
			}
		}
	}
	return cat.Fallback
}

// baselineRegion picks the longest non-censored response, falling back to
// the longest overall.
func baselineRegion(present []string, scores map[string]*datatypes.RegionScore) string {
	best, bestLen := "", -1
	for _, region := range present {
		s := scores[region]
		if s.IsCensored {
			continue
		}
		if s.ResponseLength > bestLen {
			best, bestLen = region, s.ResponseLength
		}
	}
	if best != "" {
		return best
	}
	for _, region := range present {
		if scores[region].ResponseLength > bestLen {
			best, bestLen = region, scores[region].ResponseLength
		}
	}
	return best
}

// =============================================================================
// Summary
// =============================================================================

func summarize(a *datatypes.DiffAnalysis, present int) string {
	var censored []string
	for _, region := range sortedScoreRegions(a.RegionScores) {
		if a.RegionScores[region].IsCensored {
			censored = append(censored, region)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d region(s) produced a completed response.", present, present+len(a.MissingRegions))
	if len(censored) > 0 {
		fmt.Fprintf(&b, " Content refusals detected in: %s.", strings.Join(censored, ", "))
	}
	if present >= 2 {
		fmt.Fprintf(&b, " Bias variance %.3f, censorship rate %.2f, narrative divergence %.2f.",
			a.Aggregate.BiasVariance, a.Aggregate.CensorshipRate, a.Aggregate.NarrativeDivergence)
	}
	fmt.Fprintf(&b, " Risk level: %s.", a.RiskLevel)
	return b.String()
}

func sortedRegions(results map[string]*datatypes.JobResult) []string {
	regions := make([]string, 0, len(results))
	for r := range results {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

func sortedScoreRegions(scores map[string]*datatypes.RegionScore) []string {
	regions := make([]string, 0, len(scores))
	for r := range scores {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}
