// Package processor reconciles identity-provider change events into the
// profile repository. Delivery is at-least-once and may arrive out of order;
// processing is idempotent and does not reorder — last write wins at the
// repository.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"member-directory/internal/models"
	"member-directory/internal/redis"
)

const dedupTTL = 10 * time.Minute

// IdentitySyncer is the repository capability the processor needs.
type IdentitySyncer interface {
	ApplyIdentitySync(ctx context.Context, identityID string, patch models.IdentityPatch) error
}

type EventProcessor struct {
	log   *slog.Logger
	repo  IdentitySyncer
	redis *redis.Client
}

// NewEventProcessor builds a processor. redisClient may be nil; dedup is an
// optimization, correctness comes from ApplyIdentitySync being idempotent.
func NewEventProcessor(log *slog.Logger, repo IdentitySyncer, redisClient *redis.Client) *EventProcessor {
	return &EventProcessor{
		log:   log,
		repo:  repo,
		redis: redisClient,
	}
}

// ProcessIdentityUpdate applies a provider "user.updated" event. A returned
// error means the transport should signal failure so the sender retries;
// events without a matching profile succeed silently.
func (ep *EventProcessor) ProcessIdentityUpdate(ctx context.Context, evt models.IdentityUpdateEvent) error {
	if evt.IdentityID == "" {
		// permanently malformed; an error here would make the provider
		// redeliver the same broken event forever
		ep.log.Warn("identity_event_malformed", "event_id", evt.EventID)
		return nil
	}

	fullName := evt.FullName()
	if fullName == "" && evt.PhotoURL == "" {
		// nothing relevant carried; acknowledge without touching storage
		ep.log.Debug("identity_event_noop", "event_id", evt.EventID, "identity_id", evt.IdentityID)
		return nil
	}

	if ep.seenBefore(ctx, evt.EventID) {
		ep.log.Debug("identity_event_duplicate", "event_id", evt.EventID)
		return nil
	}

	patch := models.IdentityPatch{}
	if fullName != "" {
		patch.FullName = &fullName
	}
	if evt.PhotoURL != "" {
		patch.PhotoURL = &evt.PhotoURL
	}

	if err := ep.repo.ApplyIdentitySync(ctx, evt.IdentityID, patch); err != nil {
		ep.log.Warn("identity_sync_failed",
			"event_id", evt.EventID,
			"identity_id", evt.IdentityID,
			"error", err,
		)
		// release the dedup mark so the redelivery is not skipped
		ep.forget(ctx, evt.EventID)
		return err
	}

	return nil
}

// seenBefore marks the event id in redis and reports whether it was already
// there. Redis being down just means duplicates get re-applied, which the
// repository tolerates.
func (ep *EventProcessor) seenBefore(ctx context.Context, eventID string) bool {
	if ep.redis == nil || eventID == "" {
		return false
	}
	key := fmt.Sprintf("event:dedup:%s", eventID)
	set, err := ep.redis.SetNX(ctx, key, "1", dedupTTL)
	if err != nil {
		return false
	}
	return !set
}

func (ep *EventProcessor) forget(ctx context.Context, eventID string) {
	if ep.redis == nil || eventID == "" {
		return
	}
	_ = ep.redis.Del(ctx, fmt.Sprintf("event:dedup:%s", eventID))
}
