package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/Herald/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func TestCapabilities(t *testing.T) {
	n := NewNotifier("")
	if n.Name() != "discord" {
		t.Fatalf("expected 'discord', got %q", n.Name())
	}
	caps := n.Capabilities()
	if !caps.RichFormatting || !caps.Threads {
		t.Fatalf("unexpected capabilities %+v", caps)
	}
}

func TestSendNotConfigured(t *testing.T) {
	err := NewNotifier("").Send(context.Background(), notifier.Notification{Title: "test"})
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendEmbed(t *testing.T) {
	var got discordWebhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{
		Title:   "Mail job alert partial",
		Message: "3 sent, 1 failed of 4",
		Level:   "warning",
		Source:  "job.failed",
		Fields: []notifier.Field{
			{Name: "Job ID", Value: "j-1"},
			{Name: "Evacuation Orders", Value: strings.Repeat("x", 80)},
			{Name: "Skipped", Value: ""},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Color != 0xF39C12 {
		t.Fatalf("color = %#x", e.Color)
	}
	if len(e.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(e.Fields))
	}
	if !e.Fields[0].Inline || e.Fields[1].Inline {
		t.Fatalf("inline flags = %v/%v", e.Fields[0].Inline, e.Fields[1].Inline)
	}
	if e.Footer == nil || e.Footer.Text != "Source: job.failed" {
		t.Fatalf("footer = %+v", e.Footer)
	}
}

func TestBuildEmbedTruncatesLongValues(t *testing.T) {
	e := buildEmbed(notifier.Notification{
		Title:  "Long",
		Fields: []notifier.Field{{Name: "Body", Value: strings.Repeat("a", 2000)}},
	})
	if got := len(e.Fields[0].Value); got != maxFieldValue {
		t.Fatalf("value length = %d", got)
	}
}

func TestLevelColor(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"success", 0x2ECC71},
		{"error", 0xE74C3C},
		{"warning", 0xF39C12},
		{"info", 0x3498DB},
		{"", 0x3498DB},
	}
	for _, tt := range tests {
		if got := levelColor(tt.level); got != tt.want {
			t.Errorf("levelColor(%q) = %#x, want %#x", tt.level, got, tt.want)
		}
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad"}`))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{Title: "T"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
}
