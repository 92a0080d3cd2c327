// Package directory builds filtered, sorted views over published profiles.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"member-directory/internal/config"
	"member-directory/internal/db"
	"member-directory/internal/models"
)

// Filters narrows the published directory. Absent filters (empty strings)
// impose no constraint; supplied ones combine with AND.
//
// Search and Background deliberately use different match modes: free search
// is a case-insensitive substring OR across name/bio/background/working-on,
// while Background is a substring refinement on that one field.
type Filters struct {
	Search     string
	Background string
	Country    string
	City       string
}

func (f Filters) Empty() bool {
	return f.Search == "" && f.Background == "" && f.Country == "" && f.City == ""
}

// Engine executes read-only directory queries.
type Engine struct {
	log   *slog.Logger
	db    *db.DB
	order string
}

func NewEngine(log *slog.Logger, dbConn *db.DB, order string) *Engine {
	if order != config.OrderDisplay && order != config.OrderNewest {
		order = config.OrderDisplay
	}
	return &Engine{log: log, db: dbConn, order: order}
}

const directoryColumns = `id, external_identity_id, slug, full_name, photo_url, bio, background,
	country, city, working_on, looking_for, ask_me_about,
	linkedin_url, twitter_url, github_url, website_url,
	code_id, is_published, created_at, updated_at`

// buildWhere composes the WHERE clause and positional args for filters.
// Only published rows are ever eligible.
func buildWhere(f Filters) (string, []interface{}) {
	conditions := []string{"is_published = TRUE"}
	args := make([]interface{}, 0, 4)

	arg := func(v string) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(full_name ILIKE %[1]s OR bio ILIKE %[1]s OR background ILIKE %[1]s OR working_on ILIKE %[1]s)", p))
	}
	if f.Background != "" {
		conditions = append(conditions, fmt.Sprintf("background ILIKE %s", arg("%"+f.Background+"%")))
	}
	if f.Country != "" {
		conditions = append(conditions, fmt.Sprintf("country = %s", arg(f.Country)))
	}
	if f.City != "" {
		conditions = append(conditions, fmt.Sprintf("city = %s", arg(f.City)))
	}

	return strings.Join(conditions, " AND "), args
}

// orderBy returns the configured deterministic ordering. The id tie-break
// keeps equal filter input stable across calls.
func (e *Engine) orderBy() string {
	if e.order == config.OrderNewest {
		return "created_at DESC, id ASC"
	}
	return "code_id ASC NULLS LAST, id ASC"
}

// ListPublished returns published profiles matching filters, in the
// configured deterministic order.
func (e *Engine) ListPublished(ctx context.Context, f Filters) ([]models.Profile, error) {
	where, args := buildWhere(f)

	rows, err := e.db.Pool.Query(ctx,
		`SELECT `+directoryColumns+` FROM profiles WHERE `+where+` ORDER BY `+e.orderBy(),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(
			&p.ID, &p.ExternalIdentityID, &p.Slug, &p.FullName, &p.PhotoURL, &p.Bio, &p.Background,
			&p.Country, &p.City, &p.WorkingOn, &p.LookingFor, &p.AskMeAbout,
			&p.LinkedinURL, &p.TwitterURL, &p.GithubURL, &p.WebsiteURL,
			&p.CodeID, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	return profiles, nil
}

// Count returns the cardinality of ListPublished under the same filter
// semantics.
func (e *Engine) Count(ctx context.Context, f Filters) (int, error) {
	where, args := buildWhere(f)

	var count int
	err := e.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM profiles WHERE `+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published: %w", err)
	}

	return count, nil
}

// facetColumns whitelists the fields exposed as facets. Caller input is
// mapped through this table and never interpolated into SQL.
var facetColumns = map[string]string{
	"background": "background",
	"country":    "country",
	"city":       "city",
}

// FacetField reports whether field names a supported facet.
func FacetField(field string) bool {
	_, ok := facetColumns[field]
	return ok
}

// DistinctValues returns the sorted distinct non-null values of a facet
// field among published profiles.
func (e *Engine) DistinctValues(ctx context.Context, field string) ([]string, error) {
	col, ok := facetColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported facet field %q", field)
	}

	rows, err := e.db.Pool.Query(ctx,
		`SELECT DISTINCT `+col+` FROM profiles
		 WHERE is_published = TRUE AND `+col+` IS NOT NULL
		 ORDER BY `+col+` ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan facet value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}

	return values, nil
}
