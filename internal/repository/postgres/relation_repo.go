package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

const relationColumns = `ar.id, ar.registration_id, ar.group_name, ar.status, ar.has_control, ` + agentColumns

func scanRelation(row pgx.Row) (*domain.AgentRelation, error) {
	rel := &domain.AgentRelation{Agent: &domain.Agent{}}
	a := rel.Agent
	err := row.Scan(&rel.ID, &rel.RegistrationID, &rel.Group, &rel.Status, &rel.HasControl,
		&a.ID, &a.UserID, &a.Type, &a.Name, &a.ShortDescription, &a.Status, &a.Properties, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *Repo) relationsOf(ctx context.Context, registrationID int64) (map[string][]*domain.AgentRelation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+relationColumns+`
		FROM agent_relations ar JOIN agents a ON a.id = ar.agent_id
		WHERE ar.registration_id = $1 ORDER BY ar.id`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query relations: %w", err)
	}
	defer rows.Close()

	out := map[string][]*domain.AgentRelation{}
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan relation: %w", err)
		}
		out[rel.Group] = append(out[rel.Group], rel)
	}
	return out, rows.Err()
}

func (r *Repo) GetRelation(ctx context.Context, id int64) (*domain.AgentRelation, error) {
	rel, err := scanRelation(r.pool.QueryRow(ctx, `
		SELECT `+relationColumns+`
		FROM agent_relations ar JOIN agents a ON a.id = ar.agent_id
		WHERE ar.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("agent relation %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get relation: %w", err)
	}
	return rel, nil
}

func (r *Repo) AddRelation(ctx context.Context, rel *domain.AgentRelation) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO agent_relations (registration_id, group_name, agent_id, status, has_control)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rel.RegistrationID, rel.Group, rel.Agent.ID, rel.Status, rel.HasControl).Scan(&rel.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to create agent relation: %w", err)
	}
	return nil
}

// RemoveRelations удаляет всех агентов группы из заявки
func (r *Repo) RemoveRelations(ctx context.Context, registrationID int64, group string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM agent_relations WHERE registration_id = $1 AND group_name = $2`, registrationID, group)
	if err != nil {
		return fmt.Errorf("postgres: delete relations: %w", err)
	}
	return nil
}

// SetRelationStatus подтверждение связи. Условие по статусу защищает от двойного подтверждения.
func (r *Repo) SetRelationStatus(ctx context.Context, id int64, from, to domain.RelationStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE agent_relations SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("postgres: update relation status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("agent relation %d: %w", id, domain.ErrRelationNotPending)
	}
	return nil
}
