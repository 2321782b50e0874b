package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/catalog"
)

func TestTelegramNotifySendsMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("bot-token", "chat-42", server.URL, 5*time.Second, zerolog.Nop())
	err := n.Notify(context.Background(), "duke", Notification{
		Title:    "Energy full",
		Emoji:    "⚡",
		Severity: catalog.SeverityWarning,
		Lines:    []string{"Energy is at 150/150."},
	})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if gotPath != "/botbot-token/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotPayload["chat_id"] != "chat-42" {
		t.Fatalf("unexpected chat id %q", gotPayload["chat_id"])
	}
	text := gotPayload["text"]
	for _, want := range []string{"⚡", "Energy full", "[duke]", "(warning)", "Energy is at 150/150."} {
		if !strings.Contains(text, want) {
			t.Fatalf("message %q missing %q", text, want)
		}
	}
}

func TestTelegramNotifyRejectsNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("bot-token", "chat-42", server.URL, 5*time.Second, zerolog.Nop())
	err := n.Notify(context.Background(), "duke", Notification{Title: "Energy full"})
	if err == nil {
		t.Fatal("expected error on ok=false response")
	}
}

func TestTelegramNotifyRejectsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewTelegramNotifier("bot-token", "chat-42", server.URL, 5*time.Second, zerolog.Nop())
	err := n.Notify(context.Background(), "duke", Notification{Title: "Energy full"})
	if err == nil {
		t.Fatal("expected error on HTTP 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error should carry the status code, got %v", err)
	}
}

func TestRenderMessageLayout(t *testing.T) {
	msg := renderMessage("duke", Notification{
		Title:    "Travel landed",
		Emoji:    "🛬",
		Severity: catalog.SeverityInfo,
		Lines:    []string{"Arrived in Mexico.", "Shops are open."},
	})

	lines := strings.Split(msg, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two lines, got %d: %q", len(lines), msg)
	}
	if lines[0] != "🛬 Travel landed [duke]" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if strings.Contains(lines[0], "(info)") {
		t.Fatal("info severity must not be spelled out")
	}
}

func TestRenderMessageWithoutSubject(t *testing.T) {
	msg := renderMessage("", Notification{Title: "Cash threshold", Severity: catalog.SeverityCritical})
	if msg != "Cash threshold (critical)" {
		t.Fatalf("unexpected message %q", msg)
	}
}
