// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/telemetry"
	test "github.com/jaycherian/gcp-go-video-rag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestLoggerUsesCloudLoggingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf, slog.LevelInfo)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))
	logger.With("component", "test").WarnContext(ctx, "scene batch failed", "batch", 2)
	logger.DebugContext(ctx, "dropped")

	var record map[string]any
	test.HandleErr(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record), t)
	assert.Equal(t, "WARNING", record["severity"])
	assert.Equal(t, "scene batch failed", record["message"])
	assert.Contains(t, record, "timestamp")
	assert.Equal(t, "test", record["component"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", record["logging.googleapis.com/trace"])
	assert.Equal(t, "00f067aa0ba902b7", record["logging.googleapis.com/spanId"])
	assert.Equal(t, true, record["logging.googleapis.com/trace_sampled"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, telemetry.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, telemetry.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, telemetry.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, telemetry.ParseLevel(""))
}

func TestSetupOpenTelemetryWithoutExporter(t *testing.T) {
	config := cloud.NewConfig()
	config.Telemetry.Exporter = telemetry.ExporterNone
	shutdown, err := telemetry.SetupOpenTelemetry(context.Background(), config)
	test.HandleErr(err, t)
	assert.NoError(t, shutdown(context.Background()))
}
