package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/mapasculturais/internal/audit"
)

var auditColumns = []string{"id", "trace_id", "registration_id", "project_id", "actor_id", "hook", "status", "timestamp"}

// WriteBatch пакетная вставка через COPY
func (r *Repo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"registration_audit"}, auditColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			id, err := uuid.Parse(e.ID)
			if err != nil {
				return nil, fmt.Errorf("audit event id %q: %w", e.ID, err)
			}
			return []any{id, e.TraceID, e.RegistrationID, e.ProjectID, e.ActorID, e.Hook, e.Status, e.Timestamp}, nil
		}))
	if err != nil {
		return fmt.Errorf("postgres: write audit batch: %w", err)
	}
	return nil
}

// ListAuditEvents история переходов заявки в хронологическом порядке
func (r *Repo) ListAuditEvents(ctx context.Context, registrationID int64) ([]audit.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, trace_id, registration_id, project_id, actor_id, hook, status, timestamp
		FROM registration_audit
		WHERE registration_id = $1
		ORDER BY timestamp, id`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query audit: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var e audit.Event
		err := row.Scan(&e.ID, &e.TraceID, &e.RegistrationID, &e.ProjectID, &e.ActorID, &e.Hook, &e.Status, &e.Timestamp)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: collect audit: %w", err)
	}
	return events, nil
}
