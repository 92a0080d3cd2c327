// Package seed imports unclaimed directory profiles from a JSON file. Seeded
// profiles have no owning identity and stay claimable until a member attaches
// their account.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"member-directory/internal/db"
	"member-directory/internal/slug"
)

// Member is one entry of the seed file.
type Member struct {
	FullName    string `json:"full_name"`
	PhotoURL    string `json:"photo_url"`
	Bio         string `json:"bio"`
	Background  string `json:"background"`
	Country     string `json:"country"`
	City        string `json:"city"`
	WorkingOn   string `json:"working_on,omitempty"`
	LookingFor  string `json:"looking_for,omitempty"`
	AskMeAbout  string `json:"ask_me_about,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
	TwitterURL  string `json:"twitter_url,omitempty"`
	GithubURL   string `json:"github_url,omitempty"`
	WebsiteURL  string `json:"website_url,omitempty"`
}

// Load reads and parses a seed file.
func Load(path string) ([]Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var members []Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return members, nil
}

var seedColumns = []string{
	"slug", "full_name", "photo_url", "bio", "background",
	"country", "city", "working_on", "looking_for", "ask_me_about",
	"linkedin_url", "twitter_url", "github_url", "website_url",
	"code_id",
}

// Importer batch-inserts seed members as unclaimed published profiles with
// sequential display order.
type Importer struct {
	log   *slog.Logger
	db    *db.DB
	slugs *slug.Service
}

func NewImporter(log *slog.Logger, dbConn *db.DB, slugs *slug.Service) *Importer {
	return &Importer{log: log, db: dbConn, slugs: slugs}
}

// Import assigns each member a unique slug and a code_id matching its file
// position, then COPYs the rows in. nextCodeID is the first display-order
// value to assign.
func (imp *Importer) Import(ctx context.Context, members []Member, nextCodeID int) (int, error) {
	rows := make([][]interface{}, 0, len(members))
	taken := make(map[string]bool, len(members))

	for i, m := range members {
		if strings.TrimSpace(m.FullName) == "" {
			return 0, fmt.Errorf("seed entry %d: missing full_name", i)
		}
		// a name with no slug-usable characters would yield a bare-suffix slug
		if slug.Normalize(m.FullName) == "" {
			return 0, fmt.Errorf("seed entry %d (%s): name has no slug-usable characters", i, m.FullName)
		}

		s, err := imp.uniqueSlug(ctx, m.FullName, taken)
		if err != nil {
			return 0, fmt.Errorf("seed entry %d (%s): %w", i, m.FullName, err)
		}
		taken[s] = true

		rows = append(rows, []interface{}{
			s, m.FullName, m.PhotoURL, m.Bio, m.Background,
			m.Country, m.City,
			nilIfEmpty(m.WorkingOn), nilIfEmpty(m.LookingFor), nilIfEmpty(m.AskMeAbout),
			nilIfEmpty(m.LinkedinURL), nilIfEmpty(m.TwitterURL), nilIfEmpty(m.GithubURL), nilIfEmpty(m.WebsiteURL),
			nextCodeID + i,
		})
	}

	bp := db.NewBatchProcessor(imp.db, imp.log)
	if err := bp.InsertRows(ctx, "profiles", seedColumns, rows); err != nil {
		return 0, err
	}

	imp.log.Info("seed_import_complete", "members", len(rows), "first_code_id", nextCodeID)
	return len(rows), nil
}

// uniqueSlug generates a slug that is free both in storage and within the
// current batch (the storage index cannot see uninserted rows yet). Batch
// duplicates get a numeric suffix.
func (imp *Importer) uniqueSlug(ctx context.Context, fullName string, taken map[string]bool) (string, error) {
	s, err := imp.slugs.GenerateUnique(ctx, fullName)
	if err != nil {
		return "", err
	}
	if !taken[s] {
		return s, nil
	}

	for n := 2; n < 100; n++ {
		suffix := fmt.Sprintf("-%d", n)
		base := s
		if len(base)+len(suffix) > slug.MaxLength {
			base = strings.TrimRight(base[:slug.MaxLength-len(suffix)], "-")
		}
		candidate := base + suffix
		if !taken[candidate] {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find a free slug for %q", fullName)
}

func nilIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
