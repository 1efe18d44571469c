package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/juju/errors"
)

const migrationTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// InitSchema applies the embedded migrations that have not run yet.
func (db *DB) InitSchema(ctx context.Context) error {
	return errors.Trace(db.applyMigrations(ctx, migrationFS, "migrations"))
}

// applyMigrations executes every *.sql file under root at most once, in name
// order, recording each in the migration table.
func (db *DB) applyMigrations(ctx context.Context, migrations fs.FS, root string) error {
	entries, err := fs.ReadDir(migrations, root)
	if err != nil {
		return errors.Annotate(err, "read migrations dir")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS `+migrationTable+` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return errors.Annotate(err, "ensure migration table")
	}

	for _, file := range files {
		applied, err := db.migrationApplied(ctx, file)
		if err != nil {
			return errors.Annotatef(err, "check migration %s", file)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrations, path.Join(root, file))
		if err != nil {
			return errors.Annotatef(err, "read migration %s", file)
		}
		upSQL := extractUp(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		if err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, upSQL); err != nil {
				return errors.Annotatef(err, "exec migration %s", file)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
				file, db.clock.Now().UTC().UnixMilli(),
			)
			return errors.Annotatef(err, "record migration %s", file)
		}); err != nil {
			return err
		}
	}
	return nil
}

// extractUp returns the SQL between "-- +migrate Up" and "-- +migrate Down".
// Files without markers are applied whole.
func extractUp(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(body, "-- +migrate Down"); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

func (db *DB) migrationApplied(ctx context.Context, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
