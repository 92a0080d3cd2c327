package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"member-directory/internal/models"
	"member-directory/internal/security"
)

const maxWebhookBody = 1 << 20 // 1MB

// identityWebhookPayload is the provider's event envelope.
type identityWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		ImageURL  string `json:"image_url"`
	} `json:"data"`
}

// identityWebhook receives identity-change notifications. The transport is
// untrusted: the payload is verified against the shared secret before any
// field is read. Delivery is at-least-once; a non-2xx response makes the
// provider retry.
func (s *Server) identityWebhook(c *gin.Context) {
	if !s.webhookLimiter.Allow(security.ClientIPFromRequest(c.Request)) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": gin.H{"code": "rate_limited", "message": "too many requests"}})
		return
	}

	if len(s.cfg.WebhookSecret) == 0 {
		s.log.Error("webhook_secret_not_configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "config_error", "message": "webhook secret not configured"}})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(body) > maxWebhookBody {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "unreadable payload"}})
		return
	}

	msgID := c.GetHeader("svix-id")
	msgTimestamp := c.GetHeader("svix-timestamp")
	msgSignature := c.GetHeader("svix-signature")

	if err := security.VerifyWebhook(s.cfg.WebhookSecret, msgID, msgTimestamp, msgSignature, body); err != nil {
		s.log.Warn("webhook_rejected",
			"msg_id", msgID,
			"client_ip", c.ClientIP(),
			"error", err,
		)
		status := http.StatusBadRequest
		if errors.Is(err, security.ErrStaleTimestamp) {
			status = http.StatusRequestTimeout
		}
		c.JSON(status, gin.H{"error": gin.H{"code": "invalid_signature", "message": "signature verification failed"}})
		return
	}

	var payload identityWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "malformed event payload"}})
		return
	}

	// only identity-updated events carry directory-relevant fields
	if payload.Type != "user.updated" {
		c.JSON(http.StatusOK, gin.H{"handled": false})
		return
	}

	evt := models.IdentityUpdateEvent{
		EventID:    msgID,
		IdentityID: payload.Data.ID,
		FirstName:  payload.Data.FirstName,
		LastName:   payload.Data.LastName,
		PhotoURL:   payload.Data.ImageURL,
		ObservedAt: time.Now(),
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.events.ProcessIdentityUpdate(ctx, evt); err != nil {
		// surface as a server error so the provider redelivers
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "sync_failed", "message": "event processing failed"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"handled": true})
}
