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
	"strings"
	"testing"

	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(config.DefaultScoring())
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	c := newTestClassifier(t)
	long := strings.Repeat("a detailed historical account of the events ", 10)

	tests := []struct {
		name string
		res  *datatypes.JobResult
		want datatypes.ResponseClass
	}{
		{
			"substantive",
			completed("us-east", long),
			datatypes.ClassSubstantive,
		},
		{
			"refusal phrase",
			completed("asia-pacific", "I cannot provide answers on political matters."),
			datatypes.ClassContentRefusal,
		},
		{
			"refusal pattern",
			completed("asia-pacific", "We must decline to discuss this subject."),
			datatypes.ClassContentRefusal,
		},
		{
			// Refusals pad themselves past any length floor; markers win.
			"long refusal",
			completed("asia-pacific", long+" However, I'm not able to go into details."),
			datatypes.ClassContentRefusal,
		},
		{
			"failed job",
			&datatypes.JobResult{Status: datatypes.StatusFailed, Error: "dead-lettered"},
			datatypes.ClassTechnicalFailure,
		},
		{
			"short non-refusal",
			completed("us-east", "It happened in 1989."),
			datatypes.ClassUnknown,
		},
		{
			"empty completion",
			completed("us-east", ""),
			datatypes.ClassUnknown,
		},
		{
			"still processing",
			&datatypes.JobResult{Status: datatypes.StatusProcessing},
			datatypes.ClassUnknown,
		},
		{
			"nil result",
			nil,
			datatypes.ClassUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := c.Classify(tt.res)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_ReturnsIndicators(t *testing.T) {
	c := newTestClassifier(t)
	class, indicators := c.Classify(completed("asia-pacific",
		"I cannot provide answers on political matters, and I must decline to answer."))
	assert.Equal(t, datatypes.ClassContentRefusal, class)
	assert.Contains(t, indicators, "i cannot provide answers on political matters")
	assert.GreaterOrEqual(t, len(indicators), 2, "phrase and pattern both matched")
}

func TestNewClassifier_RejectsInvalidPattern(t *testing.T) {
	cfg := config.DefaultScoring()
	cfg.RefusalPatterns = append(cfg.RefusalPatterns, `([unclosed`)
	_, err := NewClassifier(cfg)
	assert.Error(t, err)
}

// =============================================================================
// Scorer Tests
// =============================================================================

func TestScorer_PoliticalSensitivity(t *testing.T) {
	s := NewScorer(config.DefaultScoring())

	charged := s.politicalSensitivity("the military crackdown and suppression of democracy protests")
	bland := s.politicalSensitivity("the recipe calls for flour, butter and a pinch of salt")
	assert.Greater(t, charged, 0.5)
	assert.Zero(t, bland)
	assert.Zero(t, s.politicalSensitivity(""))
}

func TestScorer_FactualAccuracy(t *testing.T) {
	s := NewScorer(config.DefaultScoring())
	full := s.factualAccuracy("on june 4 1989 tanks of the military entered tiananmen square in beijing; students protests casualties")
	none := s.factualAccuracy("completely unrelated text about gardening")
	assert.Greater(t, full, 0.9)
	assert.Zero(t, none)
}

func TestLengthComponent(t *testing.T) {
	assert.InDelta(t, 1.0, lengthComponent(0), 0.0001)
	assert.InDelta(t, 0.5, lengthComponent(500), 0.0001)
	assert.InDelta(t, 0.0, lengthComponent(1000), 0.0001)
	assert.InDelta(t, 0.0, lengthComponent(5000), 0.0001)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.42, clamp01(0.42))
}
