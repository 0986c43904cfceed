package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		records = append(records, rec)
	}
	return records
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{in: "debug", want: slog.LevelDebug, wantOK: true},
		{in: "DEBUG", want: slog.LevelDebug, wantOK: true},
		{in: "", want: slog.LevelInfo, wantOK: true},
		{in: "info", want: slog.LevelInfo, wantOK: true},
		{in: "warning", want: slog.LevelWarn, wantOK: true},
		{in: " error ", want: slog.LevelError, wantOK: true},
		{in: "verbose", want: slog.LevelInfo, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Run("prefixed variable wins", func(t *testing.T) {
		t.Setenv("BILLING_SYNC_LOG_LEVEL", "debug")
		t.Setenv("LOG_LEVEL", "error")
		assert.Equal(t, slog.LevelDebug, LevelFromEnv("BILLING_SYNC"))
	})

	t.Run("falls back to LOG_LEVEL", func(t *testing.T) {
		t.Setenv("BILLING_SYNC_LOG_LEVEL", "")
		t.Setenv("LOG_LEVEL", "warn")
		assert.Equal(t, slog.LevelWarn, LevelFromEnv("BILLING_SYNC"))
	})

	t.Run("invalid value is info", func(t *testing.T) {
		t.Setenv("BILLING_SYNC_LOG_LEVEL", "loud")
		assert.Equal(t, slog.LevelInfo, LevelFromEnv("BILLING_SYNC"))
	})
}

func TestNewHandler_FiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.LevelWarn, &buf))

	logger.Info("dropped")
	logger.Warn("kept", "entity_id", "cus_1", "count", 3)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0]["msg"])
	assert.Equal(t, "warn", records[0]["level"])
	assert.Equal(t, "cus_1", records[0]["entity_id"])
	assert.InDelta(t, 3, records[0]["count"], 0)
}

func TestNewHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.LevelInfo, &buf)).With("shard", "default")

	logger.InfoContext(ctx, "with span")
	logger.InfoContext(context.Background(), "without span")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)

	assert.Equal(t, traceID.String(), records[0]["trace_id"])
	assert.Equal(t, spanID.String(), records[0]["span_id"])
	assert.Equal(t, "default", records[0]["shard"])

	assert.NotContains(t, records[1], "trace_id")
	assert.Equal(t, "default", records[1]["shard"])
}
