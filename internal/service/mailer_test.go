package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMailerSend(t *testing.T) {
	var got struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Subject string `json:"subject"`
		Text    string `json:"text"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(srv.URL, "key-123", "noreply@smarthubultra.dev")
	err := mailer.Send(context.Background(), Message{
		To:      "user@example.com",
		Subject: "hello",
		Text:    "body",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer key-123" {
		t.Fatalf("unexpected auth header: %q", auth)
	}
	if got.From != "noreply@smarthubultra.dev" || got.To != "user@example.com" || got.Subject != "hello" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestHTTPMailerSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(srv.URL, "key-123", "noreply@smarthubultra.dev")
	if err := mailer.Send(context.Background(), Message{To: "user@example.com"}); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}

func TestNoopMailerAlwaysFails(t *testing.T) {
	if err := (NoopMailer{}).Send(context.Background(), Message{To: "user@example.com"}); err == nil {
		t.Fatalf("noop mailer must report failure so links are shared by hand")
	}
}
