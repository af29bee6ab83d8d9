package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "")

	log.Info("dropped")
	log.Warn("kept", slog.Int("matches", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1 (info must be filtered):\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["service"] != Service || rec["matches"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter(&buf, "debug", "TEXT").Debug("hello")

	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "service=showfinder") {
		t.Errorf("text output = %q", out)
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should yield slog.Default()")
	}

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "json")
	if got := FromContext(WithLogger(context.Background(), l)); got != l {
		t.Error("FromContext did not return the stored logger")
	}
}
