package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/Herald/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func TestNotifierName(t *testing.T) {
	n := NewNotifier("")
	if n.Name() != "slack" {
		t.Fatalf("expected 'slack', got %q", n.Name())
	}
	if !n.Capabilities().RichFormatting {
		t.Fatal("expected RichFormatting=true")
	}
}

func TestSendNotConfigured(t *testing.T) {
	n := NewNotifier("")
	err := n.Send(context.Background(), notifier.Notification{Title: "test"})
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendRendersFields(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{
		Title:   "Flood Warning",
		Message: "River levels rising",
		Level:   "error",
		Source:  "alert.issued",
		Fields: []notifier.Field{
			{Name: "Severity", Value: "High"},
			{Name: "Area", Value: "Riverside"},
			{Name: "Empty", Value: ""},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Text != "[ALERT] Flood Warning" {
		t.Fatalf("fallback text = %q", got.Text)
	}
	// header, message, fields, context
	if len(got.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(got.Blocks))
	}
	fields := got.Blocks[2].Fields
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields (empty skipped), got %d", len(fields))
	}
	if fields[0].Text != "*Severity*\nHigh" {
		t.Fatalf("field = %q", fields[0].Text)
	}
	if ctx := got.Blocks[3]; ctx.Type != "context" || !strings.Contains(ctx.Elements[0].Text, "alert.issued") {
		t.Fatalf("context block = %+v", ctx)
	}
}

func TestBuildMessageSplitsFields(t *testing.T) {
	n := notifier.Notification{Title: "Many"}
	for i := range 12 {
		n.Fields = append(n.Fields, notifier.Field{Name: fmt.Sprintf("F%d", i), Value: "v"})
	}
	msg := buildMessage(n)
	// header plus two field sections
	if len(msg.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(msg.Blocks))
	}
	if len(msg.Blocks[1].Fields) != 10 || len(msg.Blocks[2].Fields) != 2 {
		t.Fatalf("field split = %d/%d", len(msg.Blocks[1].Fields), len(msg.Blocks[2].Fields))
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{Title: "Test"})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected 500 error, got %v", err)
	}
}

func TestRegisteredFactory(t *testing.T) {
	ns, err := notifier.FromWebhooks(map[string]string{"slack": "https://hooks.slack.com/services/T0/B0/x"})
	if err != nil {
		t.Fatalf("FromWebhooks: %v", err)
	}
	if len(ns) != 1 || ns[0].Name() != "slack" {
		t.Fatalf("notifiers = %v", ns)
	}
}
