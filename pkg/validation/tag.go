// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// database queries and time-series tags. Using these validators prevents
// injection attacks (Flux injection through tag values, unbounded label
// cardinality through crafted identifiers).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// tagPattern matches identifiers that are safe as InfluxDB tag values and
// Prometheus label values: model names ("llama-3.1-8b"), region slugs
// ("asia-pacific"), provider IDs ("us-beacon-1").
// Max length: 64 characters.
var tagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// ValidateTag validates an identifier before it is used as a tag value in a
// Flux query or time-series write.
//
// Valid identifiers:
//   - 1-64 characters
//   - lowercase letters a-z and digits 0-9
//   - dots (.), underscores (_) and hyphens (-) after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateTag(model); err != nil {
//	    return fmt.Errorf("invalid model name: %w", err)
//	}
//	// Safe to use as a tag value
func ValidateTag(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if !tagPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier: %q (must be 1-64 lowercase alphanumeric chars, dots, underscores, or hyphens)", id)
	}

	return nil
}

// ValidateTags validates multiple identifiers.
// Returns an error listing all invalid identifiers if any fail validation.
func ValidateTags(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateTag(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid identifiers: %v", invalid)
	}
	return nil
}

// SanitizeTag normalizes and validates an identifier.
// Returns the lowercase identifier if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeModel, err := validation.SanitizeTag(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeModel is lowercase and validated
func SanitizeTag(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateTag(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
