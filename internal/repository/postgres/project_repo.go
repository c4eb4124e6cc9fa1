package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

// GetProject проект вместе с агентом-владельцем и требованиями к файлам
func (r *Repo) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	query := `
		SELECT id, name, owner_id, use_registrations, registration_from, registration_to,
		       registration_categories, registration_categ_title, published_registrations,
		       registration_limit_per_owner, metadata
		FROM projects WHERE id = $1`

	p := &domain.Project{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.OwnerID, &p.UseRegistrations, &p.RegistrationFrom, &p.RegistrationTo,
		&p.RegistrationCategories, &p.RegistrationCategTitle, &p.PublishedRegistrations,
		&p.RegistrationLimitPerOwner, &p.Metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get project: %w", err)
	}

	if p.Owner, err = r.GetAgent(ctx, p.OwnerID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, title, description, required
		FROM registration_file_configurations WHERE project_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: query file configurations: %w", err)
	}
	p.FileConfigurations, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.FileConfiguration, error) {
		c := &domain.FileConfiguration{}
		return c, row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Description, &c.Required)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan file configuration: %w", err)
	}
	return p, nil
}
