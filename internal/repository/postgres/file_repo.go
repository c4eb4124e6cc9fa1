package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/mapasculturais/internal/domain"
)

func (r *Repo) filesOf(ctx context.Context, registrationID int64) (map[string]*domain.File, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id, grp, name, path, mime_type, size, create_timestamp
		FROM files WHERE owner_id = $1`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query files: %w", err)
	}
	defer rows.Close()

	files := map[string]*domain.File{}
	for rows.Next() {
		f := &domain.File{}
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Group, &f.Name, &f.Path, &f.MimeType, &f.Size, &f.CreateTimestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan file: %w", err)
		}
		files[f.Group] = f
	}
	return files, rows.Err()
}

// SaveFile в группе хранится один файл: новый замещает прежний
func (r *Repo) SaveFile(ctx context.Context, f *domain.File) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO files (id, owner_id, grp, name, path, mime_type, size, create_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, grp) DO UPDATE
		SET id = EXCLUDED.id, name = EXCLUDED.name, path = EXCLUDED.path,
		    mime_type = EXCLUDED.mime_type, size = EXCLUDED.size, create_timestamp = EXCLUDED.create_timestamp`,
		f.ID, f.OwnerID, f.Group, f.Name, f.Path, f.MimeType, f.Size, f.CreateTimestamp)
	if err != nil {
		return fmt.Errorf("postgres: save file: %w", err)
	}
	return nil
}

func (r *Repo) DeleteFile(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete file: %w", err)
	}
	return nil
}
