package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns

	// ChangedWhen names a column that gates the update: a conflicting row is
	// only rewritten when its value differs from the incoming one.
	ChangedWhen string
}

// BulkUpsert writes rows in one transaction: COPY into a temp table shaped
// like the target, then INSERT ... ON CONFLICT (keys) DO UPDATE. The temp
// table is dropped on commit. It returns the number of rows inserted or
// updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	temp := tempTable(cfg.Table)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, upsertSQL(cfg, temp))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func tempTable(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

// updateColumns returns cfg.UpdateCols, defaulting to every column outside
// the conflict key.
func updateColumns(cfg UpsertConfig) []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

func upsertSQL(cfg UpsertConfig, temp string) string {
	target := sanitizeTable(cfg.Table)
	cols := quoteAndJoin(cfg.Columns)

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		target, cols, cols, pgx.Identifier{temp}.Sanitize(), quoteAndJoin(cfg.ConflictKeys))

	update := updateColumns(cfg)
	if len(update) == 0 {
		sb.WriteString("DO NOTHING")
		return sb.String()
	}

	set := make([]string, len(update))
	for i, col := range update {
		c := pgx.Identifier{col}.Sanitize()
		set[i] = c + " = EXCLUDED." + c
	}
	sb.WriteString("DO UPDATE SET " + strings.Join(set, ", "))

	if cfg.ChangedWhen != "" {
		c := pgx.Identifier{cfg.ChangedWhen}.Sanitize()
		fmt.Fprintf(&sb, " WHERE %s.%s IS DISTINCT FROM EXCLUDED.%s", target, c, c)
	}
	return sb.String()
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
