package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"
)

const schemaVersion = 1

// bootstrapLockID serializes schema setup across processes sharing a database.
const bootstrapLockID int64 = 0x5374_7564_7956

//go:embed scripts/initdb.sql
var initSQL string

// EnsureBootstrapped installs the vector extension and the collection
// registry once per schema version.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	applied, err := schemaApplied(ctx, db)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Released on commit or rollback.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockID); err != nil {
		return fmt.Errorf("bootstrap lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("exec initdb.sql: %w", err)
	}
	return tx.Commit()
}

func schemaApplied(ctx context.Context, db *sql.DB) (bool, error) {
	var hasMeta bool
	if err := db.QueryRowContext(ctx, `SELECT to_regclass('studyvault_meta') IS NOT NULL`).Scan(&hasMeta); err != nil {
		return false, fmt.Errorf("meta table check: %w", err)
	}
	if !hasMeta {
		return false, nil
	}

	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM studyvault_meta WHERE version = $1`, schemaVersion).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("schema version check: %w", err)
	}
	return true, nil
}
