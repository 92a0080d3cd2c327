package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"member-directory/internal/db"
	"member-directory/internal/models"
	"member-directory/internal/redis"
	"member-directory/internal/slug"
)

const pgUniqueViolation = "23505"

// Invalidator drops cached public views by key. Invalidation runs outside the
// transactional write path; failures are logged, never surfaced.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Repository owns create/read/update of profile records and enforces the
// one-profile-per-identity and one-profile-per-slug invariants. The database
// uniqueness constraints are the authoritative guard; slug pre-checks are a
// UX optimization only.
type Repository struct {
	log   *slog.Logger
	db    *db.DB
	slugs *slug.Service
	inv   Invalidator
}

func NewRepository(log *slog.Logger, dbConn *db.DB, inv Invalidator) *Repository {
	r := &Repository{
		log: log,
		db:  dbConn,
		inv: inv,
	}
	r.slugs = slug.NewService(r)
	return r
}

// Slugs exposes the slug service wired to this repository's index.
func (r *Repository) Slugs() *slug.Service {
	return r.slugs
}

const profileColumns = `id, external_identity_id, slug, full_name, photo_url, bio, background,
	country, city, working_on, looking_for, ask_me_about,
	linkedin_url, twitter_url, github_url, website_url,
	code_id, is_published, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID, &p.ExternalIdentityID, &p.Slug, &p.FullName, &p.PhotoURL, &p.Bio, &p.Background,
		&p.Country, &p.City, &p.WorkingOn, &p.LookingFor, &p.AskMeAbout,
		&p.LinkedinURL, &p.TwitterURL, &p.GithubURL, &p.WebsiteURL,
		&p.CodeID, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIdentity returns the profile owned by identityID, or ErrNotFound.
// At most one row can match by invariant.
func (r *Repository) GetByIdentity(ctx context.Context, identityID string) (*models.Profile, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE external_identity_id = $1`,
		identityID,
	)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by identity: %w", err)
	}
	return p, nil
}

// GetBySlug returns the profile holding slug, case-sensitive exact match.
func (r *Repository) GetBySlug(ctx context.Context, s string) (*models.Profile, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE slug = $1`,
		s,
	)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by slug: %w", err)
	}
	return p, nil
}

// GetByID returns a profile by internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return p, nil
}

// OwnerOf implements slug.Index over the profiles table.
func (r *Repository) OwnerOf(ctx context.Context, s string) (string, bool, error) {
	var owner *string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT external_identity_id FROM profiles WHERE slug = $1`,
		s,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("slug lookup: %w", err)
	}
	if owner == nil {
		return "", true, nil
	}
	return *owner, true, nil
}

// Create inserts a new published profile owned by identityID.
func (r *Repository) Create(ctx context.Context, identityID string, fields models.ProfileFields) (string, error) {
	if _, err := r.GetByIdentity(ctx, identityID); err == nil {
		return "", ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	if err := Validate(fields); err != nil {
		return "", err
	}

	available, err := r.slugs.IsAvailable(ctx, fields.Slug, "")
	if err != nil {
		return "", err
	}
	if !available {
		return "", ErrSlugTaken
	}

	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO profiles (
			external_identity_id, slug, full_name, photo_url, bio, background,
			country, city, working_on, looking_for, ask_me_about,
			linkedin_url, twitter_url, github_url, website_url
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		identityID, fields.Slug, fields.FullName, fields.PhotoURL, fields.Bio, fields.Background,
		fields.Country, fields.City, fields.WorkingOn, fields.LookingFor, fields.AskMeAbout,
		fields.LinkedinURL, fields.TwitterURL, fields.GithubURL, fields.WebsiteURL,
	)
	if err != nil {
		return "", r.mapUniqueViolation(err, "create profile")
	}

	r.log.Info("profile_created", "identity_id", identityID, "slug", fields.Slug)
	r.invalidateViews(fields.Slug, "")

	return fields.Slug, nil
}

// Update rewrites all mutable fields of the caller's profile. A slug change
// re-checks availability excluding the caller.
func (r *Repository) Update(ctx context.Context, identityID string, fields models.ProfileFields) (string, error) {
	current, err := r.GetByIdentity(ctx, identityID)
	if err != nil {
		return "", err
	}

	if err := Validate(fields); err != nil {
		return "", err
	}

	if fields.Slug != current.Slug {
		available, err := r.slugs.IsAvailable(ctx, fields.Slug, identityID)
		if err != nil {
			return "", err
		}
		if !available {
			return "", ErrSlugTaken
		}
	}

	_, err = r.db.Pool.Exec(ctx,
		`UPDATE profiles SET
			slug = $2, full_name = $3, photo_url = $4, bio = $5, background = $6,
			country = $7, city = $8, working_on = $9, looking_for = $10, ask_me_about = $11,
			linkedin_url = $12, twitter_url = $13, github_url = $14, website_url = $15,
			updated_at = now()
		WHERE external_identity_id = $1`,
		identityID, fields.Slug, fields.FullName, fields.PhotoURL, fields.Bio, fields.Background,
		fields.Country, fields.City, fields.WorkingOn, fields.LookingFor, fields.AskMeAbout,
		fields.LinkedinURL, fields.TwitterURL, fields.GithubURL, fields.WebsiteURL,
	)
	if err != nil {
		return "", r.mapUniqueViolation(err, "update profile")
	}

	r.log.Info("profile_updated", "identity_id", identityID, "slug", fields.Slug)
	r.invalidateViews(current.Slug, fields.Slug)

	return fields.Slug, nil
}

// Claim attaches an unowned profile to identityID. The ownership transition
// is a single conditional update so two identities racing for the same seed
// profile cannot both win; the loser gets ErrNotClaimable.
func (r *Repository) Claim(ctx context.Context, profileID, identityID string) error {
	if _, err := r.GetByIdentity(ctx, identityID); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	var claimedSlug string
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE profiles SET external_identity_id = $1, updated_at = now()
		 WHERE id = $2 AND external_identity_id IS NULL
		 RETURNING slug`,
		identityID, profileID,
	).Scan(&claimedSlug)
	if errors.Is(err, pgx.ErrNoRows) {
		// either the profile does not exist or someone else owns it now
		if _, err := r.GetByID(ctx, profileID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrNotClaimable
	}
	if err != nil {
		return r.mapUniqueViolation(err, "claim profile")
	}

	r.log.Info("profile_claimed", "profile_id", profileID, "identity_id", identityID, "slug", claimedSlug)
	r.invalidateViews(claimedSlug, "")
	return nil
}

// ApplyIdentitySync applies a partial name/photo patch from the identity
// provider. Idempotent: only fields present and different are written, and an
// unchanged patch does not bump updated_at. A missing profile is a silent
// no-op so identity events may predate directory signup.
func (r *Repository) ApplyIdentitySync(ctx context.Context, identityID string, patch models.IdentityPatch) error {
	current, err := r.GetByIdentity(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	newName := current.FullName
	if patch.FullName != nil && *patch.FullName != "" {
		newName = *patch.FullName
	}
	newPhoto := current.PhotoURL
	if patch.PhotoURL != nil && *patch.PhotoURL != "" {
		newPhoto = *patch.PhotoURL
	}

	if newName == current.FullName && newPhoto == current.PhotoURL {
		return nil
	}

	_, err = r.db.Pool.Exec(ctx,
		`UPDATE profiles SET full_name = $2, photo_url = $3, updated_at = now()
		 WHERE external_identity_id = $1`,
		identityID, newName, newPhoto,
	)
	if err != nil {
		return fmt.Errorf("identity sync: %w", err)
	}

	r.log.Info("identity_sync_applied", "identity_id", identityID,
		"name_changed", newName != current.FullName,
		"photo_changed", newPhoto != current.PhotoURL,
	)
	r.invalidateViews(current.Slug, "")
	return nil
}

// mapUniqueViolation turns a constraint race into the matching conflict
// error; the unique index is the ultimate arbiter under concurrent writers.
func (r *Repository) mapUniqueViolation(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch {
		case pgErr.ConstraintName == "profiles_slug_key":
			return ErrSlugTaken
		case pgErr.ConstraintName == "profiles_external_identity_id_key":
			return ErrAlreadyExists
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// invalidateViews drops cached directory and profile-page views. Best-effort
// and detached from the caller's context: a mutation never fails or blocks on
// cache state.
func (r *Repository) invalidateViews(oldSlug, newSlug string) {
	keys := []string{redis.KeyDirectory, redis.KeyDirectoryCount}
	keys = append(keys, redis.AllFacetKeys()...)
	if oldSlug != "" {
		keys = append(keys, redis.KeyProfile(oldSlug))
	}
	if newSlug != "" && newSlug != oldSlug {
		keys = append(keys, redis.KeyProfile(newSlug))
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.inv.Invalidate(ctx, keys...); err != nil {
			r.log.Warn("cache_invalidation_failed", "keys", keys, "error", err)
		}
	}()
}
