// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the cross-region analysis model: the execution set fed
// into the diff engine and the DiffAnalysis it produces.
package datatypes

import "time"

// =============================================================================
// Execution Set
// =============================================================================

// RegionExecutionSet groups the per-region results for one (model, question)
// pair. The set may be partial: a region that never produced a result is
// listed in MissingRegions rather than silently dropped, so downstream
// consumers can distinguish "no data" from "zero bias".
type RegionExecutionSet struct {
	Model          string                `json:"model"`
	QuestionID     string                `json:"question_id"`
	Results        map[string]*JobResult `json:"results"`
	MissingRegions []string              `json:"missing_regions,omitempty"`
}

// PresentRegions returns the regions with a completed, non-empty-status
// result, sorted order not guaranteed.
func (s *RegionExecutionSet) PresentRegions() []string {
	regions := make([]string, 0, len(s.Results))
	for region, res := range s.Results {
		if res != nil && res.Status == StatusCompleted {
			regions = append(regions, region)
		}
	}
	return regions
}

// =============================================================================
// Diff Analysis
// =============================================================================

// RiskLevel is the categorical outcome of the risk classifier.
type RiskLevel string

const (
	RiskInsufficientData RiskLevel = "insufficient-data"
	RiskLow              RiskLevel = "low"
	RiskMedium           RiskLevel = "medium"
	RiskHigh             RiskLevel = "high"
)

// ResponseClass is the coarse classification of one regional response.
type ResponseClass string

const (
	ClassSubstantive      ResponseClass = "substantive"
	ClassContentRefusal   ResponseClass = "content_refusal"
	ClassTechnicalFailure ResponseClass = "technical_failure"
	ClassUnknown          ResponseClass = "unknown"
)

// RegionScore holds the per-region heuristic scores computed by the diff
// engine. All scores are in [0,1].
type RegionScore struct {
	Region               string        `json:"region"`
	Classification       ResponseClass `json:"classification"`
	BiasScore            float64       `json:"bias_score"`
	IsCensored           bool          `json:"is_censored"`
	FactualAccuracy      float64       `json:"factual_accuracy"`
	PoliticalSensitivity float64       `json:"political_sensitivity"`
	Keywords             []string      `json:"keywords,omitempty"`
	RefusalIndicators    []string      `json:"refusal_indicators,omitempty"`
	ResponseLength       int           `json:"response_length"`
}

// AggregateMetrics are computed over present regions only. With fewer than
// two present regions the aggregates are meaningless and the risk level is
// forced to insufficient-data instead of reporting zeros.
type AggregateMetrics struct {
	BiasVariance        float64 `json:"bias_variance"`
	CensorshipRate      float64 `json:"censorship_rate"`
	FactualConsistency  float64 `json:"factual_consistency"`
	NarrativeDivergence float64 `json:"narrative_divergence"`
}

// KeyDifference describes one semantic dimension on which the regional
// narratives diverge (e.g. casualty reporting). RegionValues maps each
// present region to the variation label the engine assigned to its text.
type KeyDifference struct {
	Category     string            `json:"category"`
	RegionValues map[string]string `json:"region_values"`
	Severity     string            `json:"severity"` // "low", "medium", "high"
	Description  string            `json:"description,omitempty"`
	Baseline     string            `json:"baseline_region,omitempty"`
}

// DiffAnalysis is the full cross-region comparison for one (model, question)
// pair. It is immutable once produced; recomputing over the same execution
// set yields an identical analysis (modulo AnalysisID and GeneratedAt).
type DiffAnalysis struct {
	AnalysisID     string                  `json:"analysis_id"`
	Model          string                  `json:"model"`
	QuestionID     string                  `json:"question_id"`
	GeneratedAt    time.Time               `json:"generated_at"`
	RegionScores   map[string]*RegionScore `json:"region_scores"`
	MissingRegions []string                `json:"missing_regions,omitempty"`
	Aggregate      AggregateMetrics        `json:"aggregate"`
	RiskLevel      RiskLevel               `json:"risk_level"`
	KeyDifferences []KeyDifference         `json:"key_differences,omitempty"`
	Summary        string                  `json:"summary"`
	Recommendation string                  `json:"recommendation"`
}

// =============================================================================
// Pairwise Compare API Types
// =============================================================================

// RegionText is one side of a pairwise comparison.
type RegionText struct {
	Region string `json:"region" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

// CompareRequest is the body of POST /v1/diffs/compare.
type CompareRequest struct {
	A RegionText `json:"a" validate:"required"`
	B RegionText `json:"b" validate:"required"`
}

// Validate runs struct validation on the compare request.
func (r *CompareRequest) Validate() error {
	return jobValidate.Struct(r)
}

// DiffSegment is one aligned chunk of a pairwise text diff.
type DiffSegment struct {
	Type string `json:"type"` // "equal", "delete", "insert", "replace"
	A    string `json:"a"`
	B    string `json:"b"`
}

// CompareResponse is the result of a pairwise comparison.
type CompareResponse struct {
	ID         string        `json:"id"`
	Similarity float64       `json:"similarity"`
	Segments   []DiffSegment `json:"segments"`
	A          RegionText    `json:"a"`
	B          RegionText    `json:"b"`
	CreatedAt  time.Time     `json:"created_at"`
}
