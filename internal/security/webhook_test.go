package security

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	now := time.Now()
	id := "msg_123"
	ts := fmt.Sprintf("%d", now.Unix())
	payload := []byte(`{"type":"user.updated"}`)

	sig := SignWebhook(testSecret, id, ts, payload)

	if err := verifyWebhookAt(testSecret, id, ts, sig, payload, now); err != nil {
		t.Errorf("expected valid signature to verify, got %v", err)
	}
}

func TestVerifyWebhook_RejectsTamperedPayload(t *testing.T) {
	now := time.Now()
	id := "msg_123"
	ts := fmt.Sprintf("%d", now.Unix())

	sig := SignWebhook(testSecret, id, ts, []byte(`{"a":1}`))

	err := verifyWebhookAt(testSecret, id, ts, sig, []byte(`{"a":2}`), now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyWebhook_RejectsWrongSecret(t *testing.T) {
	now := time.Now()
	id := "msg_123"
	ts := fmt.Sprintf("%d", now.Unix())
	payload := []byte(`{}`)

	sig := SignWebhook([]byte("another-secret-entirely-32bytes!"), id, ts, payload)

	err := verifyWebhookAt(testSecret, id, ts, sig, payload, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyWebhook_RejectsStaleTimestamp(t *testing.T) {
	now := time.Now()
	id := "msg_123"
	payload := []byte(`{}`)

	old := now.Add(-10 * time.Minute)
	ts := fmt.Sprintf("%d", old.Unix())
	sig := SignWebhook(testSecret, id, ts, payload)

	err := verifyWebhookAt(testSecret, id, ts, sig, payload, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("expected ErrStaleTimestamp, got %v", err)
	}

	future := now.Add(10 * time.Minute)
	ts = fmt.Sprintf("%d", future.Unix())
	sig = SignWebhook(testSecret, id, ts, payload)

	err = verifyWebhookAt(testSecret, id, ts, sig, payload, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("expected ErrStaleTimestamp for future timestamp, got %v", err)
	}
}

func TestVerifyWebhook_MissingHeaders(t *testing.T) {
	now := time.Now()
	ts := fmt.Sprintf("%d", now.Unix())

	tests := []struct {
		name        string
		id, ts, sig string
	}{
		{"missing id", "", ts, "v1,abc"},
		{"missing timestamp", "msg_1", "", "v1,abc"},
		{"missing signature", "msg_1", ts, ""},
		{"garbage timestamp", "msg_1", "not-a-number", "v1,abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyWebhookAt(testSecret, tt.id, tt.ts, tt.sig, []byte(`{}`), now)
			if err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestVerifyWebhook_MultipleSignatureEntries(t *testing.T) {
	now := time.Now()
	id := "msg_multi"
	ts := fmt.Sprintf("%d", now.Unix())
	payload := []byte(`{"x":true}`)

	good := SignWebhook(testSecret, id, ts, payload)
	header := "v1,bogusbogusbogus= " + good + " v2,ignored"

	if err := verifyWebhookAt(testSecret, id, ts, header, payload, now); err != nil {
		t.Errorf("expected any matching v1 entry to pass, got %v", err)
	}
}

func TestVerifyWebhook_NoSecretConfigured(t *testing.T) {
	err := VerifyWebhook(nil, "msg_1", "123", "v1,abc", []byte(`{}`))
	if err == nil {
		t.Error("expected error when secret is not configured")
	}
}
