// Package identity wraps the external identity provider: it is the source of
// truth for "who is the current caller" and a best-effort mirror target for
// profile name/photo.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is a thin REST client for the identity provider.
type Client struct {
	log        *slog.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
}

func NewClient(log *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: NewHTTPClient(),
		retry:      DefaultRetryConfig(),
	}
}

// VerifySession resolves a session token to an identity id, or empty if the
// token does not verify. The token is opaque to this service.
func (c *Client) VerifySession(ctx context.Context, sessionToken string) (string, error) {
	if sessionToken == "" {
		return "", nil
	}

	body, _ := json.Marshal(map[string]string{"token": sessionToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/sessions/verify", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session verify: provider status %d", resp.StatusCode)
	}

	var out struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("session verify: %w", err)
	}
	return out.UserID, nil
}

// MirrorProfile pushes the directory's name/photo back to the provider so
// both stay roughly in sync. Best-effort: the caller must treat failure as
// log-and-continue, never as a reason to fail the primary write.
func (c *Client) MirrorProfile(ctx context.Context, identityID, fullName, photoURL string) error {
	if identityID == "" {
		return fmt.Errorf("missing identity id")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"public_metadata": map[string]string{
			"directory_name":  fullName,
			"directory_photo": photoURL,
		},
	})

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := CalculateBackoff(c.retry, attempt-1, retryAfterFrom(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.patchUser(ctx, identityID, payload)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("mirror profile: %w", lastErr)
}

func (c *Client) patchUser(ctx context.Context, identityID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/users/%s", c.baseURL, identityID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<14))

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitedError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider status %d", resp.StatusCode)
	}
	return nil
}

type rateLimitedError struct {
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.retryAfter)
}

func retryAfterFrom(err error) time.Duration {
	if rl, ok := err.(*rateLimitedError); ok {
		return rl.retryAfter
	}
	return 0
}

func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
