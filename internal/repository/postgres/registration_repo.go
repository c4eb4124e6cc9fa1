package postgres

/*
Файл registration_repo.go хранит заявки вместе с дочерними записями:
метаданные, связи с агентами и файлы удаляются каскадно вместе с заявкой.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

const registrationColumns = `id, project_id, owner_id, category, status, create_timestamp, sent_timestamp, COALESCE(agents_data, '{}'::jsonb)`

type registrationRow struct {
	reg     domain.Registration
	ownerID int64
	status  domain.Status
}

func scanRegistrationRow(row pgx.Row) (*registrationRow, error) {
	rr := &registrationRow{}
	err := row.Scan(&rr.reg.ID, &rr.reg.ProjectID, &rr.ownerID, &rr.reg.Category, &rr.status,
		&rr.reg.CreateTimestamp, &rr.reg.SentTimestamp, &rr.reg.AgentsData)
	if err != nil {
		return nil, err
	}
	return rr, nil
}

// GetRegistration загружает заявку с проектом, владельцем, связями, файлами и метаданными.
func (r *Repo) GetRegistration(ctx context.Context, id int64) (*domain.Registration, error) {
	rr, err := scanRegistrationRow(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("registration %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get registration: %w", err)
	}
	return r.hydrate(ctx, rr, nil)
}

// ListRegistrationsByProject заявки проекта по возрастанию номера
func (r *Repo) ListRegistrationsByProject(ctx context.Context, projectID int64) ([]*domain.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query registrations: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*registrationRow, error) {
		return scanRegistrationRow(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan registration: %w", err)
	}

	var project *domain.Project
	if len(list) > 0 {
		if project, err = r.GetProject(ctx, projectID); err != nil {
			return nil, err
		}
	}

	regs := make([]*domain.Registration, 0, len(list))
	for _, rr := range list {
		reg, err := r.hydrate(ctx, rr, project)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func (r *Repo) hydrate(ctx context.Context, rr *registrationRow, project *domain.Project) (*domain.Registration, error) {
	var err error
	reg := &rr.reg

	if project == nil {
		if project, err = r.GetProject(ctx, reg.ProjectID); err != nil {
			return nil, err
		}
	}
	reg.Project = project

	if reg.Owner, err = r.GetAgent(ctx, rr.ownerID); err != nil {
		return nil, err
	}
	if reg.RelatedAgents, err = r.relationsOf(ctx, reg.ID); err != nil {
		return nil, err
	}
	if reg.Files, err = r.filesOf(ctx, reg.ID); err != nil {
		return nil, err
	}
	if reg.Metadata, err = r.metadataOf(ctx, reg.ID); err != nil {
		return nil, err
	}
	return domain.RestoreRegistration(reg, rr.status), nil
}

func (r *Repo) metadataOf(ctx context.Context, registrationID int64) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM registration_meta WHERE registration_id = $1`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query metadata: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres: scan metadata: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// CreateRegistration вставляет заявку, присваивая ID вида <projectID><seq>.
// Порядковый номер берется из счетчика проекта в той же транзакции.
func (r *Repo) CreateRegistration(ctx context.Context, reg *domain.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO registration_sequences (project_id, last_seq) VALUES ($1, 1)
		ON CONFLICT (project_id) DO UPDATE SET last_seq = registration_sequences.last_seq + 1
		RETURNING last_seq`, reg.ProjectID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("postgres: next registration sequence: %w", err)
	}

	id := domain.FormatRegistrationID(reg.ProjectID, seq)
	if id == 0 {
		return fmt.Errorf("postgres: registration id overflow for project %d", reg.ProjectID)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO registrations (id, project_id, owner_id, category, status, create_timestamp, sent_timestamp, agents_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, reg.ProjectID, reg.Owner.ID, reg.Category, reg.Status(), reg.CreateTimestamp, reg.SentTimestamp, nullableJSON(reg.AgentsData))
	if err != nil {
		return fmt.Errorf("postgres: insert registration: %w", err)
	}

	if err := writeMetadata(ctx, tx, id, reg.Metadata); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	reg.ID = id
	return nil
}

// SaveRegistration сохраняет изменяемые поля заявки и переписывает метаданные
func (r *Repo) SaveRegistration(ctx context.Context, reg *domain.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE registrations
		SET owner_id = $1, category = $2, status = $3, sent_timestamp = $4, agents_data = $5
		WHERE id = $6`,
		reg.Owner.ID, reg.Category, reg.Status(), reg.SentTimestamp, nullableJSON(reg.AgentsData), reg.ID)
	if err != nil {
		return fmt.Errorf("postgres: update registration: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("registration %d: %w", reg.ID, domain.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM registration_meta WHERE registration_id = $1`, reg.ID); err != nil {
		return fmt.Errorf("postgres: clear metadata: %w", err)
	}
	if err := writeMetadata(ctx, tx, reg.ID, reg.Metadata); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// DeleteRegistration удаляет заявку; дочерние записи уходят каскадом
func (r *Repo) DeleteRegistration(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete registration: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("registration %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountRegistrationsByOwner количество заявок агента в проекте
func (r *Repo) CountRegistrationsByOwner(ctx context.Context, projectID, ownerID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE project_id = $1 AND owner_id = $2`,
		projectID, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count registrations: %w", err)
	}
	return n, nil
}

func writeMetadata(ctx context.Context, tx pgx.Tx, registrationID int64, meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for k, v := range meta {
		batch.Queue(`INSERT INTO registration_meta (registration_id, key, value) VALUES ($1, $2, $3)`, registrationID, k, v)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: write metadata: %w", err)
	}
	return nil
}

// nullableJSON пустой снимок хранится как NULL
func nullableJSON(data map[string]map[string]any) any {
	if len(data) == 0 {
		return nil
	}
	return data
}
