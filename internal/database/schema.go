// schema.go — 内嵌 SQL 迁移: 按版本号顺序执行, schema_version 表追踪已应用版本。
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/stepfun-ai/StepDeepResearch/pkg/errors"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
)

// migration 一个内嵌迁移。本地网关单二进制发布, 迁移随代码内嵌而非扫目录。
type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "001_event_log",
		sql: `
		CREATE TABLE IF NOT EXISTS event_log (
			id BIGSERIAL PRIMARY KEY,
			task_id TEXT NOT NULL,
			event_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			agent_name TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_event_log_task ON event_log (task_id, id);
		`,
	},
	{
		version: "002_transcripts",
		sql: `
		CREATE TABLE IF NOT EXISTS transcripts (
			id BIGSERIAL PRIMARY KEY,
			task_id TEXT NOT NULL,
			version BIGINT NOT NULL,
			messages JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transcripts_task ON transcripts (task_id, id DESC);
		`,
	},
}

// Migrate 应用所有未执行的内嵌迁移。
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return apperrors.New("Migrate", "pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return apperrors.Wrap(err, "Migrate", "create schema_version table")
	}

	applied, err := loadAppliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := applyOneMigration(ctx, pool, m); err != nil {
			return err
		}
		logger.Info("migration applied", logger.FieldVersion, m.version)
	}
	return nil
}

func loadAppliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, apperrors.Wrap(err, "Migrate", "query schema_version")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, apperrors.Wrap(err, "Migrate", "scan schema_version")
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyOneMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrapf(err, "Migrate", "begin tx for %s", m.version)
	}
	if _, err := tx.Exec(ctx, m.sql); err != nil {
		_ = tx.Rollback(ctx)
		return apperrors.Wrapf(err, "Migrate", "exec migration %s", m.version)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.version); err != nil {
		_ = tx.Rollback(ctx)
		return apperrors.Wrapf(err, "Migrate", "record migration %s", m.version)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrapf(err, "Migrate", "commit migration %s", m.version)
	}
	return nil
}
