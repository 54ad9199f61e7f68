package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/invoice-templates/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS templates (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	vendor       TEXT NOT NULL DEFAULT '',
	version      TEXT NOT NULL DEFAULT '',
	is_active    INTEGER NOT NULL DEFAULT 1,
	definition   TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS test_results (
	id            TEXT PRIMARY KEY,
	template_id   TEXT NOT NULL,
	template_hash TEXT NOT NULL,
	document_id   TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL,
	tested_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_templates_active ON templates(is_active);
CREATE INDEX IF NOT EXISTS idx_test_results_template ON test_results(template_id, tested_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertTemplate = `INSERT INTO templates (id, name, vendor, version, is_active, definition, content_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	vendor = excluded.vendor,
	version = excluded.version,
	is_active = excluded.is_active,
	definition = excluded.definition,
	content_hash = excluded.content_hash,
	updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTemplate(ctx context.Context, ex execer, t model.Template) error {
	row, err := newTemplateRow(t)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = ex.ExecContext(ctx, sqliteUpsertTemplate,
		row.ID, row.Name, row.Vendor, row.Version, row.Active, string(row.Definition), row.ContentHash, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert template %s", t.ID)
}

func (s *SQLiteStore) SaveTemplate(ctx context.Context, t model.Template) error {
	return upsertTemplate(ctx, s.db, t)
}

// SaveTemplates upserts all templates in one transaction.
func (s *SQLiteStore) SaveTemplates(ctx context.Context, tpls []model.Template) (int64, error) {
	if len(tpls) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range tpls {
		if err := upsertTemplate(ctx, tx, t); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit templates")
	}
	return int64(len(tpls)), nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, templateID string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, definition FROM templates WHERE id = ?`,
		templateID,
	)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, definition FROM templates ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close() //nolint:errcheck

	var tpls []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, *t)
	}
	return tpls, eris.Wrap(rows.Err(), "sqlite: iterate templates")
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, templateID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, templateID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete template %s", templateID)
	}
	return checkRowsAffected(res, "template", templateID)
}

const sqliteInsertResult = `INSERT INTO test_results (id, template_id, template_hash, document_id, result, tested_at) VALUES (?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) SaveTestResult(ctx context.Context, rec *model.TestRecord) error {
	result, err := prepareRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertResult,
		rec.ID, rec.TemplateID, rec.TemplateHash, rec.DocumentID, string(result), rec.TestedAt,
	)
	return eris.Wrapf(err, "sqlite: insert test result %s", rec.ID)
}

// SaveTestResults inserts all records in one transaction, assigning ids and
// timestamps in place.
func (s *SQLiteStore) SaveTestResults(ctx context.Context, recs []model.TestRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range recs {
		rec := &recs[i]
		result, err := prepareRecord(rec)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, sqliteInsertResult,
			rec.ID, rec.TemplateID, rec.TemplateHash, rec.DocumentID, string(result), rec.TestedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert test result %s", rec.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit test results")
	}
	return int64(len(recs)), nil
}

// ListTestResults returns the newest test runs for a template first.
func (s *SQLiteStore) ListTestResults(ctx context.Context, templateID string, limit int) ([]model.TestRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, template_hash, document_id, result, tested_at
		 FROM test_results WHERE template_id = ? ORDER BY tested_at DESC, id LIMIT ?`,
		templateID, resultLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list test results")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.TestRecord
	for rows.Next() {
		var rec model.TestRecord
		var result string
		if err := rows.Scan(&rec.ID, &rec.TemplateID, &rec.TemplateHash, &rec.DocumentID, &result, &rec.TestedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan test result")
		}
		if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal test result %s", rec.ID)
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate test results")
}

// GetTestResult returns one recorded test run by id.
func (s *SQLiteStore) GetTestResult(ctx context.Context, id string) (*model.TestRecord, error) {
	var rec model.TestRecord
	var result string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, template_id, template_hash, document_id, result, tested_at
		 FROM test_results WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.TemplateID, &rec.TemplateHash, &rec.DocumentID, &result, &rec.TestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get test result %s", id)
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal test result %s", id)
	}
	return &rec, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTemplate(row scannable) (*model.Template, error) {
	var id, def string
	if err := row.Scan(&id, &def); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan template")
	}
	return decodeTemplate(id, []byte(def))
}
