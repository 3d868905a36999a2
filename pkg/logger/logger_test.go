package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "entry=%s", buf.String())
	return entry
}

func TestErrorCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Format: FormatJSON, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithReservationID(ctx, "res-1")
	ctx = log.WithProvider(ctx, "stripe")
	log.Error(ctx, "boom", errors.New("kaput"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "req-123", entry[FieldRequestID])
	assert.Equal(t, "res-1", entry[FieldReservationID])
	assert.Equal(t, "stripe", entry[FieldProvider])
	assert.Equal(t, "kaput", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestScopedFieldsDoNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: FormatJSON, Output: buf})

	parent := log.WithUserID(context.Background(), "u-1")
	_ = log.WithActorRole(parent, "admin")
	log.Info(parent, "hello")

	entry := decodeLine(t, buf)
	assert.Equal(t, "u-1", entry[FieldUserID])
	assert.NotContains(t, entry, FieldActorRole)
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Format: FormatJSON, Output: buf, WarnStack: true}).Warn(context.Background(), "warny")
	assert.Contains(t, decodeLine(t, buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "test", Format: FormatJSON, Output: buf}).Warn(context.Background(), "warny")
	assert.NotContains(t, decodeLine(t, buf), "stack")
}

func TestDebugSuppressedAboveLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Format: FormatJSON, Output: buf}).Debug(context.Background(), "noisy")
	assert.Zero(t, buf.Len())
}

func TestConsoleFormatIsNotJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Format: FormatConsole, Output: buf}).Info(context.Background(), "hi")
	assert.Contains(t, buf.String(), "hi")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var log *Logger
	ctx := log.WithRequestID(context.Background(), "req")
	assert.NotNil(t, ctx)
	log.Info(ctx, "ignored")
	log.Error(ctx, "ignored", errors.New("x"))
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}
