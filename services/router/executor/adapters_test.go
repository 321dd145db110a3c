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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeaconAdapter_ResponseShapeVariants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     string
		wantKind FailureKind // empty means success expected
	}{
		{"bool flag with response", `{"success":true,"response":"answer a"}`, "answer a", ""},
		{"status string with output", `{"status":"success","output":"answer b"}`, "answer b", ""},
		{"status completed with text", `{"status":"completed","text":"answer c"}`, "answer c", ""},
		{"empty completion is success", `{"success":true,"response":""}`, "", ""},
		{"explicit failure", `{"success":false,"error":"gpu oom"}`, "", FailureTransient},
		{"failure without detail", `{"status":"error"}`, "", FailureTransient},
		{"no flag at all", `{"response":"orphan"}`, "", FailureMalformed},
		{"success without completion", `{"success":true}`, "", FailureMalformed},
		{"truncated json", `{"success":true,"resp`, "", FailureMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				var decoded beaconRequest
				require.NoError(t, json.NewDecoder(req.Body).Decode(&decoded))
				assert.Equal(t, "llama-3", decoded.Model)
				assert.Equal(t, "us-east", decoded.Region, "region must be forwarded")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			adapter := &BeaconAdapter{Client: srv.Client()}
			got, err := adapter.Infer(context.Background(), srv.URL, "us-east",
				&datatypes.InferenceJob{Model: "llama-3", Prompt: "q", MaxTokens: 64})

			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
			}
		})
	}
}

func TestBeaconAdapter_HTTPErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := &BeaconAdapter{Client: srv.Client()}
	_, err := adapter.Infer(context.Background(), srv.URL, "us-east",
		&datatypes.InferenceJob{Model: "llama-3", Prompt: "q"})
	require.Error(t, err)
	assert.Equal(t, FailureTransient, KindOf(err))
}

func TestAdapterFor(t *testing.T) {
	a, err := AdapterFor(datatypes.ProviderKindBeacon)
	require.NoError(t, err)
	assert.IsType(t, &BeaconAdapter{}, a)

	a, err = AdapterFor(datatypes.ProviderKindOpenAI)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIAdapter{}, a)

	_, err = AdapterFor(datatypes.ProviderKind("golem"))
	assert.Error(t, err)
}
