// Package files keeps the last known file list in the local SQLite database
// so the CLI can still show it while the backend is unreachable.
//
// Typical Usage
//
//	repo := files.NewSQLiteRepository(db)
//	_ = repo.ReplaceAll(ctx, registry.Files())
//	cached, _ := repo.List(ctx)
//
// Records are stored whole, as JSON, keyed by their server ID. Provisional
// records are never written.
package files
