// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/AleutianAI/vantage/services/router/analysis"
	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/spf13/cobra"
)

// loadScoring returns the scoring section from --config, or the defaults.
func loadScoring() (config.ScoringConfig, error) {
	if configPath == "" {
		return config.DefaultScoring(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.ScoringConfig{}, err
	}
	return cfg.Scoring, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read responses: %w", err)
	}
	var responses map[string]string
	if err := json.Unmarshal(data, &responses); err != nil {
		return fmt.Errorf("parse responses: %w", err)
	}
	if len(responses) == 0 {
		return fmt.Errorf("no regions in %s", args[0])
	}

	scoring, err := loadScoring()
	if err != nil {
		return err
	}
	engine, err := analysis.NewEngine(scoring, nil)
	if err != nil {
		return err
	}

	// Wrap each captured text as a completed result so the engine sees
	// the same shape the router produces.
	set := &datatypes.RegionExecutionSet{
		Model:      "offline",
		QuestionID: "offline",
		Results:    make(map[string]*datatypes.JobResult, len(responses)),
	}
	regions := make([]string, 0, len(responses))
	for region, text := range responses {
		regions = append(regions, region)
		set.Results[region] = &datatypes.JobResult{
			JobID:    "offline-" + region,
			Status:   datatypes.StatusCompleted,
			Region:   region,
			Response: text,
		}
	}
	sort.Strings(regions)
	logger.Info("analyzing captured responses", "regions", regions)

	diff := engine.Analyze(set)
	logger.Info("analysis complete", "risk_level", diff.RiskLevel)

	out, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	aText, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	bText, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	regionA, _ := cmd.Flags().GetString("region-a")
	regionB, _ := cmd.Flags().GetString("region-b")

	comparer := analysis.NewComparer(1)
	resp := comparer.Compare(&datatypes.CompareRequest{
		A: datatypes.RegionText{Region: regionA, Text: string(aText)},
		B: datatypes.RegionText{Region: regionB, Text: string(bText)},
	})
	logger.Info("comparison complete", "similarity", resp.Similarity)

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
