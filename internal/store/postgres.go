package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/db"
	"github.com/sells-group/invoice-templates/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgGetTemplate    = `SELECT id, definition FROM templates WHERE id = $1`
	pgListTemplates  = `SELECT id, definition FROM templates ORDER BY id`
	pgDeleteTemplate = `DELETE FROM templates WHERE id = $1`
	pgUpsertTemplate = `INSERT INTO templates (id, name, vendor, version, is_active, definition, content_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	vendor = EXCLUDED.vendor,
	version = EXCLUDED.version,
	is_active = EXCLUDED.is_active,
	definition = EXCLUDED.definition,
	content_hash = EXCLUDED.content_hash,
	updated_at = EXCLUDED.updated_at`
	pgInsertResult = `INSERT INTO test_results (id, template_id, template_hash, document_id, result, tested_at) VALUES ($1, $2, $3, $4, $5, $6)`
	pgListResults  = `SELECT id, template_id, template_hash, document_id, result, tested_at FROM test_results WHERE template_id = $1 ORDER BY tested_at DESC, id LIMIT $2`
	pgGetResult    = `SELECT id, template_id, template_hash, document_id, result, tested_at FROM test_results WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_template":      pgGetTemplate,
	"list_templates":    pgListTemplates,
	"delete_template":   pgDeleteTemplate,
	"upsert_template":   pgUpsertTemplate,
	"insert_result":     pgInsertResult,
	"list_test_results": pgListResults,
	"get_test_result":   pgGetResult,
}

var (
	templateColumns = []string{"id", "name", "vendor", "version", "is_active", "definition", "content_hash", "updated_at"}
	resultColumns   = []string{"id", "template_id", "template_hash", "document_id", "result", "tested_at"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS templates (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	vendor       TEXT NOT NULL DEFAULT '',
	version      TEXT NOT NULL DEFAULT '',
	is_active    BOOLEAN NOT NULL DEFAULT true,
	definition   JSONB NOT NULL,
	content_hash TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS test_results (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	template_id   TEXT NOT NULL,
	template_hash TEXT NOT NULL,
	document_id   TEXT NOT NULL DEFAULT '',
	result        JSONB NOT NULL,
	tested_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_templates_active ON templates(is_active);
CREATE INDEX IF NOT EXISTS idx_test_results_template ON test_results(template_id, tested_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveTemplate(ctx context.Context, t model.Template) error {
	row, err := newTemplateRow(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgUpsertTemplate,
		row.ID, row.Name, row.Vendor, row.Version, row.Active, row.Definition, row.ContentHash, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert template %s", t.ID)
}

// SaveTemplates bulk-upserts templates through a COPY-loaded temp table.
// created_at keeps its value for templates that already exist.
func (s *PostgresStore) SaveTemplates(ctx context.Context, tpls []model.Template) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(tpls))
	for _, t := range tpls {
		row, err := newTemplateRow(t)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{row.ID, row.Name, row.Vendor, row.Version, row.Active, row.Definition, row.ContentHash, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "templates",
		Columns:      templateColumns,
		ConflictKeys: []string{"id"},
		ChangedWhen:  "content_hash",
	}, rows)
	return n, eris.Wrap(err, "postgres: save templates")
}

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (*model.Template, error) {
	var id string
	var def []byte
	err := s.pool.QueryRow(ctx, pgGetTemplate, templateID).Scan(&id, &def)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get template %s", templateID)
	}
	return decodeTemplate(id, def)
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.pool.Query(ctx, pgListTemplates)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var tpls []model.Template
	for rows.Next() {
		var id string
		var def []byte
		if err := rows.Scan(&id, &def); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		t, err := decodeTemplate(id, def)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, *t)
	}
	return tpls, eris.Wrap(rows.Err(), "postgres: iterate templates")
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, templateID string) error {
	tag, err := s.pool.Exec(ctx, pgDeleteTemplate, templateID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete template %s", templateID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "template %s", templateID)
	}
	return nil
}

func (s *PostgresStore) SaveTestResult(ctx context.Context, rec *model.TestRecord) error {
	result, err := prepareRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgInsertResult,
		rec.ID, rec.TemplateID, rec.TemplateHash, rec.DocumentID, result, rec.TestedAt,
	)
	return eris.Wrapf(err, "postgres: insert test result %s", rec.ID)
}

// SaveTestResults bulk-inserts records with COPY, assigning ids and
// timestamps in place.
func (s *PostgresStore) SaveTestResults(ctx context.Context, recs []model.TestRecord) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		result, err := prepareRecord(rec)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{rec.ID, rec.TemplateID, rec.TemplateHash, rec.DocumentID, result, rec.TestedAt})
	}
	n, err := db.CopyFrom(ctx, s.pool, "test_results", resultColumns, rows)
	return n, eris.Wrap(err, "postgres: save test results")
}

// ListTestResults returns the newest test runs for a template first.
func (s *PostgresStore) ListTestResults(ctx context.Context, templateID string, limit int) ([]model.TestRecord, error) {
	rows, err := s.pool.Query(ctx, pgListResults, templateID, resultLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list test results")
	}
	defer rows.Close()

	var recs []model.TestRecord
	for rows.Next() {
		var rec model.TestRecord
		var result []byte
		if err := rows.Scan(&rec.ID, &rec.TemplateID, &rec.TemplateHash, &rec.DocumentID, &result, &rec.TestedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan test result")
		}
		if err := json.Unmarshal(result, &rec.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal test result %s", rec.ID)
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate test results")
}

// GetTestResult returns one recorded test run by id.
func (s *PostgresStore) GetTestResult(ctx context.Context, id string) (*model.TestRecord, error) {
	var rec model.TestRecord
	var result []byte
	err := s.pool.QueryRow(ctx, pgGetResult, id).
		Scan(&rec.ID, &rec.TemplateID, &rec.TemplateHash, &rec.DocumentID, &result, &rec.TestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get test result %s", id)
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal test result %s", id)
	}
	return &rec, nil
}
