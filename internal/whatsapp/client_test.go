package whatsapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	if cfg.AccessToken == "" {
		cfg.AccessToken = "test-token"
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = "1234567890"
	}
	cfg.Backoff = time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1234567890/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		payload := string(body)
		if !strings.Contains(payload, `"messaging_product":"whatsapp"`) {
			t.Fatalf("missing messaging_product field: %s", payload)
		}
		if !strings.Contains(payload, "Lembrete") {
			t.Fatalf("missing message body: %s", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.ABC123"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	id, err := client.Send(context.Background(), "+5511999990000", "Lembrete: sua consulta é sábado.")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "wamid.ABC123" {
		t.Fatalf("unexpected message id %q", id)
	}
}

func TestSendRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.RETRY"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	id, err := client.Send(context.Background(), "+5511999990000", "oi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "wamid.RETRY" {
		t.Fatalf("unexpected message id %q", id)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestSendDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":131026,"message":"Receiver is incapable of receiving this message"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 3})
	_, err := client.Send(context.Background(), "+5511999990000", "oi")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 131026 {
		t.Fatalf("unexpected error code %d", apiErr.Code)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected single attempt, got %d", got)
	}
}

func TestSendValidation(t *testing.T) {
	if _, err := New(Config{PhoneNumberID: "123"}); err == nil {
		t.Fatal("expected error without access token")
	}
	if _, err := New(Config{AccessToken: "tok"}); err == nil {
		t.Fatal("expected error without phone number id")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	if _, err := client.Send(context.Background(), "  ", "corpo"); err == nil {
		t.Fatal("expected error for empty destination")
	}
}
