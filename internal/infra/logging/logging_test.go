package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-start-bot/internal/config"

	"github.com/rs/zerolog"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	ctx := WithTgID(WithTraceID(context.Background(), "trace-1"), 42)
	With(ctx, base).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if entry["trace_id"] != "trace-1" {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}
	if entry["tg_id"] != float64(42) {
		t.Errorf("tg_id = %v", entry["tg_id"])
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LogConfig{Level: "loud", Format: "json"}, false)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line should be filtered at info level, got %q", buf.String())
	}
	logger.Info().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("info line should be written")
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("ann", false); got != "***" {
		t.Errorf("short value: got %q", got)
	}
	if got := Redact("anna_karenina", false); got != "anna...na" {
		t.Errorf("long value: got %q", got)
	}
	if got := Redact("anna_karenina", true); got != "anna_karenina" {
		t.Errorf("dev mode should not redact, got %q", got)
	}
}
