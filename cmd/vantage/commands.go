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
	"github.com/AleutianAI/vantage/pkg/logging"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	verbose    bool

	logger = logging.Default()

	rootCmd = &cobra.Command{
		Use:   "vantage",
		Short: "A cli for cross-region LLM response analysis",
		Long: `Vantage routes identical prompts to LLM providers in different
geographic regions and compares the responses for bias, censorship
and narrative divergence. This CLI runs the comparison engine offline
over captured responses, without the router service.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			logger = logging.New(logging.Config{Level: level, Service: "cli"})
		},
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [responses.json]",
		Short: "Run the cross-region diff engine over captured responses",
		Long: `Reads a JSON file mapping region names to response texts, scores each
region, computes the aggregate bias metrics and prints the full
analysis as JSON on stdout.

Example input:

  {"us-east": "Detailed account...", "asia-pacific": "I cannot provide..."}`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze, // Defined in cmd_analyze.go
	}

	compareCmd = &cobra.Command{
		Use:   "compare [a.txt] [b.txt]",
		Short: "Word-level diff of two captured responses",
		Args:  cobra.ExactArgs(2),
		RunE:  runCompare, // Defined in cmd_analyze.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a router config file (scoring section is used; defaults apply when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	compareCmd.Flags().String("region-a", "a", "Label for the first text")
	compareCmd.Flags().String("region-b", "b", "Label for the second text")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
}
