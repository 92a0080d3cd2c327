package profile

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"member-directory/internal/redis"
)

type captureInvalidator struct {
	keys chan []string
}

func (c *captureInvalidator) Invalidate(_ context.Context, keys ...string) error {
	c.keys <- keys
	return nil
}

func invalidatedKeys(t *testing.T, inv *captureInvalidator) map[string]bool {
	t.Helper()
	select {
	case keys := <-inv.keys:
		set := make(map[string]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		return set
	case <-time.After(2 * time.Second):
		t.Fatal("invalidation never fired")
		return nil
	}
}

func TestInvalidateViews_DropsDirectoryAndProfileKeys(t *testing.T) {
	inv := &captureInvalidator{keys: make(chan []string, 1)}
	r := NewRepository(slog.Default(), nil, inv)

	// the claim path invalidates with the claimed slug only
	r.invalidateViews("maria-santos", "")

	got := invalidatedKeys(t, inv)
	for _, want := range []string{
		redis.KeyDirectory,
		redis.KeyDirectoryCount,
		redis.KeyProfile("maria-santos"),
	} {
		if !got[want] {
			t.Errorf("expected key %q to be invalidated, got %v", want, got)
		}
	}
	for _, facet := range redis.AllFacetKeys() {
		if !got[facet] {
			t.Errorf("expected facet key %q to be invalidated", facet)
		}
	}
}

func TestInvalidateViews_SlugChangeDropsBothPages(t *testing.T) {
	inv := &captureInvalidator{keys: make(chan []string, 1)}
	r := NewRepository(slog.Default(), nil, inv)

	r.invalidateViews("old-slug", "new-slug")

	got := invalidatedKeys(t, inv)
	if !got[redis.KeyProfile("old-slug")] || !got[redis.KeyProfile("new-slug")] {
		t.Errorf("expected both profile page keys invalidated, got %v", got)
	}
}
