package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCalculateBackoff_RespectsRetryAfter(t *testing.T) {
	cfg := DefaultRetryConfig()

	retryAfter := 5 * time.Second
	backoff := CalculateBackoff(cfg, 0, retryAfter)

	// Retry-After wins, plus 500ms padding
	expected := 5*time.Second + 500*time.Millisecond
	if backoff != expected {
		t.Errorf("expected backoff %v, got %v", expected, backoff)
	}
}

func TestCalculateBackoff_ExponentialGrowth(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         false,
	}

	if b := CalculateBackoff(cfg, 0, 0); b != 1*time.Second {
		t.Errorf("attempt 0: expected 1s, got %v", b)
	}
	if b := CalculateBackoff(cfg, 1, 0); b != 2*time.Second {
		t.Errorf("attempt 1: expected 2s, got %v", b)
	}
	if b := CalculateBackoff(cfg, 2, 0); b != 4*time.Second {
		t.Errorf("attempt 2: expected 4s, got %v", b)
	}
}

func TestCalculateBackoff_RespectsMaxBackoff(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:     10,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         false,
	}

	if b := CalculateBackoff(cfg, 10, 0); b > 5*time.Second {
		t.Errorf("expected backoff capped at 5s, got %v", b)
	}
}

func TestVerifySession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("missing api key header")
		}

		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body.Token == "good-token" {
			_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "user_42"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(slog.Default(), srv.URL, "sk_test")
	ctx := context.Background()

	id, err := c.VerifySession(ctx, "good-token")
	if err != nil {
		t.Fatal(err)
	}
	if id != "user_42" {
		t.Errorf("expected user_42, got %q", id)
	}

	id, err = c.VerifySession(ctx, "bad-token")
	if err != nil {
		t.Fatal(err)
	}
	if id != "" {
		t.Errorf("expected empty identity for bad token, got %q", id)
	}

	// empty token short-circuits without a provider call
	id, err = c.VerifySession(ctx, "")
	if err != nil || id != "" {
		t.Errorf("expected empty result for empty token, got %q, %v", id, err)
	}
}

func TestMirrorProfile_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/users/user_42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(slog.Default(), srv.URL, "sk_test")
	c.retry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2.0}

	if err := c.MirrorProfile(context.Background(), "user_42", "Ada Lovelace", "https://img/x.png"); err != nil {
		t.Errorf("expected mirror to succeed after retry, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestMirrorProfile_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(slog.Default(), srv.URL, "sk_test")
	c.retry = RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2.0}

	if err := c.MirrorProfile(context.Background(), "user_42", "Ada", ""); err == nil {
		t.Error("expected error after exhausting retries")
	}
}
