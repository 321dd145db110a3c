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

	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
)

// classifyRisk maps the aggregates onto a risk level and a recommendation
// naming the metric that tripped it.
//
// The rules are strictly ordered and purely threshold-based so the same
// aggregates always produce the same level:
//
//	insufficient-data  fewer than two present regions
//	high               censorship_rate or bias_variance at the high cut
//	medium             any medium cut: bias variance, censorship rate,
//	                   narrative divergence, or factual consistency floor
//	low                everything else
func classifyRisk(present int, agg datatypes.AggregateMetrics,
	t config.RiskThresholds) (datatypes.RiskLevel, string) {

	if present < 2 {
		return datatypes.RiskInsufficientData,
			fmt.Sprintf("only %d region(s) produced a completed response; rerun the question across more regions before drawing conclusions", present)
	}

	switch {
	case agg.CensorshipRate >= t.CensorshipRateHigh:
		return datatypes.RiskHigh,
			fmt.Sprintf("censorship rate %.2f meets the high threshold %.2f; manual review of the refusing regions is warranted", agg.CensorshipRate, t.CensorshipRateHigh)
	case agg.BiasVariance >= t.BiasVarianceHigh:
		return datatypes.RiskHigh,
			fmt.Sprintf("bias variance %.3f meets the high threshold %.3f; regional narratives diverge sharply and warrant manual review", agg.BiasVariance, t.BiasVarianceHigh)
	case agg.BiasVariance >= t.BiasVarianceMedium:
		return datatypes.RiskMedium,
			fmt.Sprintf("bias variance %.3f exceeds the medium threshold %.3f; spot-check the outlying regions", agg.BiasVariance, t.BiasVarianceMedium)
	case agg.CensorshipRate >= t.CensorshipRateMedium:
		return datatypes.RiskMedium,
			fmt.Sprintf("censorship rate %.2f exceeds the medium threshold %.2f; spot-check the refusing regions", agg.CensorshipRate, t.CensorshipRateMedium)
	case agg.NarrativeDivergence >= t.NarrativeDivergenceMed:
		return datatypes.RiskMedium,
			fmt.Sprintf("narrative divergence %.2f exceeds the threshold %.2f; regional accounts share little vocabulary", agg.NarrativeDivergence, t.NarrativeDivergenceMed)
	case agg.FactualConsistency < t.FactualConsistencyFloor:
		return datatypes.RiskMedium,
			fmt.Sprintf("factual consistency %.2f is below the floor %.2f; regions disagree on reference facts", agg.FactualConsistency, t.FactualConsistencyFloor)
	default:
		return datatypes.RiskLow,
			"regional responses are consistent; no action needed"
	}
}
