package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Strob0t/Herald/internal/config"
)

func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	dec := json.NewDecoder(out)
	for dec.More() {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decode log output: %v", err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestLoggerStampsRequestID(t *testing.T) {
	for _, async := range []bool{false, true} {
		var out bytes.Buffer
		log, sink := newLogger(config.Logging{Level: "info", Service: "herald", Async: async}, &out)

		ctx := WithRequestID(context.Background(), "4f1c2a")
		log.InfoContext(ctx, "email sent", "recipient", "ops@example.edu", "message_id", "<m1@herald.local>")
		log.Info("reminder scheduler started")
		sink.Close()

		byMsg := make(map[string]map[string]any)
		for _, l := range decodeLines(t, &out) {
			byMsg[l["msg"].(string)] = l
		}
		sent, started := byMsg["email sent"], byMsg["reminder scheduler started"]
		if sent == nil || started == nil {
			t.Fatalf("async=%v: lines = %v", async, byMsg)
		}
		if sent["request_id"] != "4f1c2a" || sent["service"] != "herald" || sent["recipient"] != "ops@example.edu" {
			t.Errorf("async=%v: send line = %v", async, sent)
		}
		if _, ok := started["request_id"]; ok {
			t.Errorf("async=%v: line without request context carries request_id: %v", async, started)
		}
		if sink.Dropped() != 0 {
			t.Errorf("async=%v: dropped %d", async, sink.Dropped())
		}
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var out bytes.Buffer
	log, sink := newLogger(config.Logging{Level: "warn", Service: "herald"}, &out)
	log.Info("email sent", "recipient", "ops@example.edu")
	log.Warn("queue booking confirmation failed", "event_id", "ev-1")
	sink.Close()

	lines := decodeLines(t, &out)
	if len(lines) != 1 || lines[0]["msg"] != "queue booking confirmation failed" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("empty context: got %q", got)
	}
	ctx := WithRequestID(context.Background(), "9d03be")
	if got := RequestID(ctx); got != "9d03be" {
		t.Errorf("got %q, want 9d03be", got)
	}
}
