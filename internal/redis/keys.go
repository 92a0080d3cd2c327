package redis

import (
	"context"
	"fmt"
)

// Cache keys for public views. Mutations invalidate these; reads treat them as
// an accelerator only, storage stays the source of truth.
const (
	KeyDirectory      = "views:directory"
	KeyDirectoryCount = "views:directory:count"
	KeyFacets         = "views:facets"
)

// KeyProfile is the cache key for a profile page by slug.
func KeyProfile(slug string) string {
	return fmt.Sprintf("views:profile:%s", slug)
}

// KeyFacet is the cache key for one facet field's distinct values.
func KeyFacet(field string) string {
	return fmt.Sprintf("%s:%s", KeyFacets, field)
}

// AllFacetKeys lists the facet keys dropped on any profile mutation.
func AllFacetKeys() []string {
	return []string{KeyFacet("background"), KeyFacet("country"), KeyFacet("city")}
}

// Invalidate drops the given view keys. Errors are returned so callers can
// log them, but invalidation is fire-and-forget relative to the mutation.
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
