// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	openai "github.com/sashabaranov/go-openai"
)

// =============================================================================
// Vendor Adapters
// =============================================================================

// Adapter performs one inference call against one provider and returns the
// normalized completion text. Vendors differ wildly in response shape; each
// adapter owns that variability and reports failures as ExecutionError so
// the executor and queue stay vendor-agnostic.
//
// An empty-but-well-formed completion is a successful call: providers
// legitimately return empty strings for some prompts, and treating that as
// failure caused spurious retries in production.
type Adapter interface {
	Infer(ctx context.Context, endpoint string, region string, job *datatypes.InferenceJob) (string, error)
}

// AdapterFor returns the adapter for a provider kind.
func AdapterFor(kind datatypes.ProviderKind) (Adapter, error) {
	switch kind {
	case datatypes.ProviderKindBeacon:
		return &BeaconAdapter{Client: http.DefaultClient}, nil
	case datatypes.ProviderKindOpenAI:
		return &OpenAIAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}

// =============================================================================
// Beacon Adapter (regional GPU workers)
// =============================================================================

// beaconRequest is the wire request for the regional worker protocol. The
// region field is forwarded so a multi-region gateway endpoint routes to
// the correct regional function.
type beaconRequest struct {
	Model        string  `json:"model"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Region       string  `json:"region"`
}

// beaconResponse covers the response shapes observed across worker
// deployments: some report success as a bool, others as status strings;
// the completion may arrive under response, output or text.
type beaconResponse struct {
	Success  *bool   `json:"success"`
	Status   string  `json:"status"`
	Response *string `json:"response"`
	Output   *string `json:"output"`
	Text     *string `json:"text"`
	Error    string  `json:"error"`
}

// BeaconAdapter speaks the plain JSON protocol of the regional GPU workers.
type BeaconAdapter struct {
	Client *http.Client
}

// Infer implements Adapter.
func (a *BeaconAdapter) Infer(ctx context.Context, endpoint, region string, job *datatypes.InferenceJob) (string, error) {
	payload, err := json.Marshal(beaconRequest{
		Model:        job.Model,
		Prompt:       job.Prompt,
		SystemPrompt: job.SystemPrompt,
		Temperature:  job.Temperature,
		MaxTokens:    job.MaxTokens,
		Region:       region,
	})
	if err != nil {
		return "", NewExecutionError(FailureTransient, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", NewExecutionError(FailureTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := os.Getenv("VANTAGE_PROVIDER_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", NewExecutionError(FailureTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", NewExecutionError(FailureTransient, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewExecutionError(FailureTransient,
			fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, truncate(body, 256)))
	}

	var parsed beaconResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", NewExecutionError(FailureMalformed, fmt.Errorf("decode response: %w", err))
	}
	return normalizeBeacon(parsed)
}

// normalizeBeacon resolves the success flag and completion text from the
// observed shape variants.
func normalizeBeacon(parsed beaconResponse) (string, error) {
	success := false
	switch {
	case parsed.Success != nil:
		success = *parsed.Success
	case parsed.Status != "":
		success = parsed.Status == "success" || parsed.Status == "ok" || parsed.Status == "completed"
	default:
		return "", NewExecutionError(FailureMalformed,
			fmt.Errorf("response carries neither success flag nor status"))
	}
	if !success {
		msg := parsed.Error
		if msg == "" {
			msg = "provider reported failure without detail"
		}
		return "", NewExecutionError(FailureTransient, fmt.Errorf("provider error: %s", msg))
	}
	for _, field := range []*string{parsed.Response, parsed.Output, parsed.Text} {
		if field != nil {
			return *field, nil
		}
	}
	return "", NewExecutionError(FailureMalformed,
		fmt.Errorf("success response without a completion field"))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// =============================================================================
// OpenAI-Compatible Adapter
// =============================================================================

// OpenAIAdapter targets OpenAI-compatible chat completion endpoints
// (vLLM, Ollama's compat layer, hosted gateways).
type OpenAIAdapter struct{}

// Infer implements Adapter.
func (a *OpenAIAdapter) Infer(ctx context.Context, endpoint, region string, job *datatypes.InferenceJob) (string, error) {
	cfg := openai.DefaultConfig(os.Getenv("VANTAGE_PROVIDER_TOKEN"))
	cfg.BaseURL = endpoint

	client := openai.NewClientWithConfig(cfg)

	messages := []openai.ChatCompletionMessage{}
	if job.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: job.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: job.Prompt,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       job.Model,
		Messages:    messages,
		Temperature: job.Temperature,
		MaxTokens:   job.MaxTokens,
	})
	if err != nil {
		return "", NewExecutionError(FailureTransient, fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", NewExecutionError(FailureMalformed, fmt.Errorf("completion with no choices"))
	}
	// Empty content in a well-formed choice is a legitimate completion.
	return resp.Choices[0].Message.Content, nil
}
