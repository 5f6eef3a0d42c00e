package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, recs []models.FileRecord) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
			return fmt.Errorf("failed to clear files: %w", err)
		}

		for _, rec := range recs {
			if rec.Provisional || rec.ID == "" {
				continue
			}
			blob, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode file %s: %w", rec.ID, err)
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO files (id, uploaded_at, record) VALUES (?, ?, ?)`,
				rec.ID, rec.UploadedAt.UTC(), blob)
			if err != nil {
				return fmt.Errorf("failed to insert file %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.FileRecord, error) {

	rows, err := r.db.QueryContext(ctx, `SELECT record FROM files ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("error selecting files: %w", err)
	}
	defer rows.Close()

	var result []models.FileRecord

	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var rec models.FileRecord
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, fmt.Errorf("error decoding cached file: %w", err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteRepository)(nil)
