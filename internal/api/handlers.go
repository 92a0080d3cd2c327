package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"member-directory/internal/directory"
	"member-directory/internal/models"
	"member-directory/internal/profile"
	"member-directory/internal/redis"
	"member-directory/internal/slug"
	"member-directory/internal/storage"
)

const viewCacheTTL = 60 * time.Second

// writeDomainError maps repository errors onto the response envelope.
// Backend faults never leak detail to the caller.
func (s *Server) writeDomainError(c *gin.Context, err error) {
	var vErr *profile.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": vErr.Error()}})
	case errors.Is(err, profile.ErrSlugTaken):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "slug_taken", "message": "this URL is already taken"}})
	case errors.Is(err, profile.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "already_exists", "message": "a profile already exists for this account"}})
	case errors.Is(err, profile.ErrNotClaimable):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "not_claimable", "message": "this profile has already been claimed"}})
	case errors.Is(err, profile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "profile not found"}})
	default:
		s.log.Error("storage_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "something went wrong"}})
	}
}

func filtersFromQuery(c *gin.Context) directory.Filters {
	return directory.Filters{
		Search:     strings.TrimSpace(c.Query("search")),
		Background: strings.TrimSpace(c.Query("background")),
		Country:    strings.TrimSpace(c.Query("country")),
		City:       strings.TrimSpace(c.Query("city")),
	}
}

// serveCached writes a cached JSON body if present. Cache is a read
// accelerator only; misses always fall through to storage.
func (s *Server) serveCached(c *gin.Context, ctx context.Context, key string) bool {
	cached, err := s.redis.Get(ctx, key)
	if err != nil || cached == "" {
		return false
	}
	c.Header("X-Cache", "HIT")
	c.Data(http.StatusOK, "application/json", []byte(cached))
	return true
}

func (s *Server) cacheJSON(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, string(data), viewCacheTTL); err != nil {
		s.log.Warn("cache_write_failed", "key", key, "error", err)
	}
}

func (s *Server) listDirectory(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	filters := filtersFromQuery(c)

	// only the unfiltered listing is cached; filtered views are cheap and varied
	if filters.Empty() && s.serveCached(c, ctx, redis.KeyDirectory) {
		return
	}

	profiles, err := s.directory.ListPublished(ctx, filters)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	body := gin.H{"profiles": profiles, "total": len(profiles)}
	if filters.Empty() {
		s.cacheJSON(ctx, redis.KeyDirectory, body)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) countDirectory(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	filters := filtersFromQuery(c)

	if filters.Empty() && s.serveCached(c, ctx, redis.KeyDirectoryCount) {
		return
	}

	count, err := s.directory.Count(ctx, filters)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	body := gin.H{"count": count}
	if filters.Empty() {
		s.cacheJSON(ctx, redis.KeyDirectoryCount, body)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) facetValues(c *gin.Context) {
	field := c.Param("field")
	if !directory.FacetField(field) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_facet", "message": "unknown facet field"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if s.serveCached(c, ctx, redis.KeyFacet(field)) {
		return
	}

	values, err := s.directory.DistinctValues(ctx, field)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	body := gin.H{"field": field, "values": values}
	s.cacheJSON(ctx, redis.KeyFacet(field), body)
	c.JSON(http.StatusOK, body)
}

func (s *Server) getProfileBySlug(c *gin.Context) {
	slugParam := c.Param("slug")
	if !slug.Valid(slugParam) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "profile not found"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if s.serveCached(c, ctx, redis.KeyProfile(slugParam)) {
		return
	}

	p, err := s.profiles.GetBySlug(ctx, slugParam)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	body := gin.H{"profile": p, "claimable": !p.Claimed()}
	s.cacheJSON(ctx, redis.KeyProfile(slugParam), body)
	c.JSON(http.StatusOK, body)
}

func (s *Server) listProjects(c *gin.Context) {
	slugParam := c.Param("slug")
	if !slug.Valid(slugParam) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "profile not found"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	p, err := s.profiles.GetBySlug(ctx, slugParam)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	projects, err := s.profiles.ListProjects(ctx, p.ID)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) getOwnProfile(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	p, err := s.profiles.GetByIdentity(ctx, currentIdentity(c))
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (s *Server) createProfile(c *gin.Context) {
	var fields models.ProfileFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "malformed profile payload"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	identityID := currentIdentity(c)
	createdSlug, err := s.profiles.Create(ctx, identityID, fields)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	// best-effort follow-up: mirror name/photo back to the identity provider.
	// The profile row is already durable; a mirror failure never unwinds it.
	s.mirrorToProvider(identityID, fields.FullName, fields.PhotoURL)

	c.JSON(http.StatusCreated, gin.H{"slug": createdSlug})
}

func (s *Server) updateProfile(c *gin.Context) {
	var fields models.ProfileFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "malformed profile payload"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	identityID := currentIdentity(c)
	updatedSlug, err := s.profiles.Update(ctx, identityID, fields)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	s.mirrorToProvider(identityID, fields.FullName, fields.PhotoURL)

	c.JSON(http.StatusOK, gin.H{"slug": updatedSlug})
}

func (s *Server) mirrorToProvider(identityID, fullName, photoURL string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.provider.MirrorProfile(ctx, identityID, fullName, photoURL); err != nil {
			s.log.Warn("identity_mirror_failed", "identity_id", identityID, "error", err)
		}
	}()
}

func (s *Server) claimProfile(c *gin.Context) {
	profileID := c.Param("id")

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.profiles.Claim(ctx, profileID, currentIdentity(c)); err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"claimed": true})
}

func (s *Server) checkSlug(c *gin.Context) {
	candidate := strings.TrimSpace(c.Query("slug"))
	if !slug.Valid(candidate) {
		c.JSON(http.StatusOK, gin.H{"slug": candidate, "available": false, "reason": "invalid_format"})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	available, err := s.profiles.Slugs().IsAvailable(ctx, candidate, currentIdentity(c))
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slug": candidate, "available": available})
}

func (s *Server) suggestSlug(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" || slug.Normalize(name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_name", "message": "name has no usable characters"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	suggestion, err := s.profiles.Slugs().GenerateUnique(ctx, name)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slug": suggestion})
}

func (s *Server) uploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "missing_file", "message": "no file provided"}})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.AllowedContentType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_file_type", "message": "upload a JPEG, PNG, WebP, or GIF image"}})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_file", "message": "could not read file"}})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, 10*1024*1024+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_file", "message": "could not read file"}})
		return
	}
	if len(data) > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "file_too_large", "message": "maximum size is 10MB"}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	url, err := s.photos.Upload(ctx, currentIdentity(c), data, contentType)
	if err != nil {
		s.log.Error("photo_upload_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "upload_failed", "message": "failed to upload image"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) deletePhoto(c *gin.Context) {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "missing photo url"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.photos.Delete(ctx, currentIdentity(c), body.URL); err != nil {
		// deletion outside the caller's namespace or an unknown url; both are
		// silently refused, matching a self-service-only delete policy
		s.log.Warn("photo_delete_refused", "identity_id", currentIdentity(c), "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "down"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "down"
	}

	status := http.StatusOK
	overall := "healthy"
	if dbStatus != "connected" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	} else if redisStatus != "connected" {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
