// Package migration creates the caption schema on first start.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_captions",
		SQL: `CREATE TABLE IF NOT EXISTS captions (
  id               UUID        PRIMARY KEY,
  language         TEXT        NOT NULL,
  caption          TEXT        NOT NULL CHECK (caption <> ''),
  translation      TEXT        NOT NULL CHECK (translation <> ''),
  image_key        TEXT        NOT NULL UNIQUE,
  image_path       TEXT        NOT NULL,
  en_audio_key     TEXT        NOT NULL,
  en_audio_path    TEXT        NOT NULL,
  trans_audio_key  TEXT        NOT NULL,
  trans_audio_path TEXT        NOT NULL,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_captions_language",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_captions_language ON captions (language);`,
	},
	{
		Name: "create_index_captions_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_captions_created_at ON captions (created_at);`,
	},
}

// EnsureMigrated creates the schema unless the captions table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	start := time.Now()
	log = log.With("component", "database")

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.captions') IS NOT NULL").Scan(&exists); err != nil {
		log.Error("db_migration_failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}
	if exists {
		log.Info("db_migration_skip", "reason", "schema already exists", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	log.Info("db_migration_start", "steps", len(steps))
	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"migration_step", step.Name,
				"error", err,
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Debug("db_migration_step", "migration_step", step.Name, "step_duration_ms", time.Since(stepStart).Milliseconds())
	}

	log.Info("db_migration_success", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
