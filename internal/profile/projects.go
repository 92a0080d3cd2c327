package profile

import (
	"context"
	"fmt"

	"member-directory/internal/models"
)

// ListProjects returns a profile's projects, newest first.
func (r *Repository) ListProjects(ctx context.Context, profileID string) ([]models.Project, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, profile_id, title, description, url, image_url, created_at, updated_at
		 FROM projects
		 WHERE profile_id = $1
		 ORDER BY created_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(
			&p.ID, &p.ProfileID, &p.Title, &p.Description,
			&p.URL, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	return projects, nil
}
