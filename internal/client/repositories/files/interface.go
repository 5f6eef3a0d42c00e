package files

import (
	"context"

	"github.com/dmitrijs2005/docmark/internal/client/models"
)

// Repository is the offline copy of the registry contents.
type Repository interface {
	// ReplaceAll swaps the cached list for recs in one transaction.
	ReplaceAll(ctx context.Context, recs []models.FileRecord) error

	// List returns the cached records, newest upload first.
	List(ctx context.Context) ([]models.FileRecord, error)

	Clear(ctx context.Context) error
}
