package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook signature scheme (svix-compatible, used by the identity provider):
// the signed content is "{id}.{timestamp}.{body}", MACed with HMAC-SHA256
// under the shared secret, and the signature header carries space-separated
// "v1,<base64>" entries.
const (
	webhookTolerance = 5 * time.Minute
	sigVersionPrefix = "v1,"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// VerifyWebhook authenticates an inbound webhook before its payload is
// trusted. id/timestamp/signature come from the transport headers, payload
// is the raw request body.
func VerifyWebhook(secret []byte, id, timestamp, signature string, payload []byte) error {
	return verifyWebhookAt(secret, id, timestamp, signature, payload, time.Now())
}

func verifyWebhookAt(secret []byte, id, timestamp, signature string, payload []byte, now time.Time) error {
	if len(secret) == 0 {
		return errors.New("webhook secret not configured")
	}
	if id == "" || timestamp == "" || signature == "" {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	sent := time.Unix(ts, 0)
	if sent.Before(now.Add(-webhookTolerance)) || sent.After(now.Add(webhookTolerance)) {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// the header may list several versioned signatures; any v1 match passes
	for _, candidate := range strings.Fields(signature) {
		if !strings.HasPrefix(candidate, sigVersionPrefix) {
			continue
		}
		sig := strings.TrimPrefix(candidate, sigVersionPrefix)
		if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1 {
			return nil
		}
	}

	return ErrInvalidSignature
}

// SignWebhook produces a v1 signature for id/timestamp/payload. Used by
// tests and local tooling to fabricate deliveries.
func SignWebhook(secret []byte, id, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(payload)
	return sigVersionPrefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
