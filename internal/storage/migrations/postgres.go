package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"mediamix-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded PostgreSQL schema files through
// the given pool. Each file runs as one Exec, so multi-statement files are
// fine on the Postgres side.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(pgFS, "postgres")
	if err != nil {
		return fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(pgFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
