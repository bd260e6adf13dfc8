package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// in order! do not skip any number
var migrations = []string{
	migration_1,
	migration_2,
	migration_3,
	migration_4,
}

type LabFlowMigrator interface {
	Run(ctx context.Context, db *sqlx.DB, schemaName string) error
}

type labFlowMigrator struct {
}

func NewLabFlowMigrator() LabFlowMigrator {
	return &labFlowMigrator{}
}

func (m *labFlowMigrator) Run(ctx context.Context, db *sqlx.DB, schemaName string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	err = m.createMigrationsTableIfNotExists(ctx, tx, schemaName)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	currentVersion, err := m.getLastAppliedMigrationVersion(ctx, tx, schemaName)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, query := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}
		query = strings.ReplaceAll(query, "<SCHEMA_PLACEHOLDER>", schemaName)
		_, err = tx.ExecContext(ctx, query)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		err = m.insertMigration(ctx, tx, schemaName, version)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	err = tx.Commit()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return nil
}

func (m *labFlowMigrator) createMigrationsTableIfNotExists(ctx context.Context, tx *sqlx.Tx, schemaName string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.lf_migrations(
		"version" int NOT NULL,
		applied_at timestamp NOT NULL DEFAULT now(),
		description varchar NOT NULL DEFAULT '',
		CONSTRAINT lf_pk_migrations PRIMARY KEY (version)
	);`, schemaName)
	_, err := tx.ExecContext(ctx, query)
	return err
}

func (m *labFlowMigrator) getLastAppliedMigrationVersion(ctx context.Context, tx *sqlx.Tx, schemaName string) (int, error) {
	var version sql.NullInt32
	query := fmt.Sprintf(`SELECT MAX(version) FROM %s.lf_migrations;`, schemaName)
	err := tx.QueryRowxContext(ctx, query).Scan(&version)
	if err != nil {
		return 0, err
	}
	return int(version.Int32), nil
}

func (m *labFlowMigrator) insertMigration(ctx context.Context, tx *sqlx.Tx, schemaName string, version int) error {
	query := fmt.Sprintf(`INSERT INTO %s.lf_migrations("version") VALUES ($1);`, schemaName)
	_, err := tx.ExecContext(ctx, query, version)
	return err
}
