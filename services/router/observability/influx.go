// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/vantage/pkg/validation"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// =============================================================================
// InfluxDB Latency Recorder (optional)
// =============================================================================

// LatencyRecorder writes per-job latency points to InfluxDB for long-term
// provider latency trending, which Prometheus histograms are too coarse
// for. Entirely optional: when VANTAGE_INFLUX_URL is unset the recorder is
// nil and every method is a no-op.
type LatencyRecorder struct {
	client influxdb2.Client
	write  api.WriteAPI
}

// NewLatencyRecorderFromEnv builds a recorder from VANTAGE_INFLUX_URL,
// VANTAGE_INFLUX_TOKEN, VANTAGE_INFLUX_ORG and VANTAGE_INFLUX_BUCKET.
// Returns nil when the URL is unset.
func NewLatencyRecorderFromEnv() *LatencyRecorder {
	url := os.Getenv("VANTAGE_INFLUX_URL")
	if url == "" {
		return nil
	}
	org := os.Getenv("VANTAGE_INFLUX_ORG")
	bucket := os.Getenv("VANTAGE_INFLUX_BUCKET")
	if bucket == "" {
		bucket = "vantage"
	}
	client := influxdb2.NewClient(url, os.Getenv("VANTAGE_INFLUX_TOKEN"))
	slog.Info("InfluxDB latency recorder enabled", "url", url, "bucket", bucket)
	return &LatencyRecorder{
		client: client,
		write:  client.WriteAPI(org, bucket),
	}
}

// RecordJobLatency writes one latency point. Writes are batched and
// asynchronous inside the client; failures are logged by the client's
// error channel, not surfaced here.
func (r *LatencyRecorder) RecordJobLatency(region, provider, model string, d time.Duration) {
	if r == nil {
		return
	}
	// Model names come from user requests; a point is dropped rather than
	// written with an unsanitizable tag value.
	safeModel, err := validation.SanitizeTag(model)
	if err != nil {
		slog.Warn("Dropping latency point with invalid model tag", "error", err)
		return
	}
	point := influxdb2.NewPointWithMeasurement("inference_latency").
		AddTag("region", region).
		AddTag("provider", provider).
		AddTag("model", safeModel).
		AddField("seconds", d.Seconds()).
		SetTime(time.Now())
	r.write.WritePoint(point)
}

// Close flushes buffered points and shuts the client down.
func (r *LatencyRecorder) Close() {
	if r == nil {
		return
	}
	r.write.Flush()
	r.client.Close()
}
