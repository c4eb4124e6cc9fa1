package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

const agentColumns = `a.id, a.user_id::text, a.type, a.name, a.short_description, a.status, a.properties, a.created_at, a.updated_at`

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	a := &domain.Agent{}
	err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Name, &a.ShortDescription, &a.Status, &a.Properties, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repo) GetAgent(ctx context.Context, id int64) (*domain.Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents a WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("agent %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get agent: %w", err)
	}
	return a, nil
}

// AgentsByUser агенты пользователя в заданном статусе, по имени
func (r *Repo) AgentsByUser(ctx context.Context, userID string, status domain.AgentStatus) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents a WHERE a.user_id = $1 AND a.status = $2 ORDER BY a.name`,
		userID, status)
	if err != nil {
		return nil, fmt.Errorf("postgres: query agents: %w", err)
	}
	defer rows.Close()

	// пустой слайс, чтобы в JSON был [] вместо null
	agents := make([]*domain.Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return agents, nil
}

func (r *Repo) CreateAgent(ctx context.Context, a *domain.Agent) error {
	if a.Properties == nil {
		a.Properties = map[string]any{}
	}
	query := `
		INSERT INTO agents (user_id, type, name, short_description, status, properties)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, a.UserID, a.Type, a.Name, a.ShortDescription, a.Status, a.Properties).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create agent: %w", err)
	}
	return nil
}

// SetAgentStatus перевод в корзину и обратно
func (r *Repo) SetAgentStatus(ctx context.Context, id int64, status domain.AgentStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE agents SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update agent status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("agent %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
