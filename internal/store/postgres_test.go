package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-templates/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func templateJSON(t *testing.T, tpl model.Template) []byte {
	t.Helper()
	b, err := json.Marshal(tpl)
	require.NoError(t, err)
	return b
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS templates`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTemplate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	tpl := sampleTemplate("amazon")

	mock.ExpectQuery(`SELECT id, definition FROM templates WHERE id = \$1`).
		WithArgs("amazon").
		WillReturnRows(pgxmock.NewRows([]string{"id", "definition"}).AddRow("amazon", templateJSON(t, tpl)))

	got, err := s.GetTemplate(context.Background(), "amazon")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "amazon", got.ID)
	assert.Equal(t, tpl.Data, got.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTemplate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, definition FROM templates WHERE id = \$1`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetTemplate(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTemplate_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, definition FROM templates`).
		WithArgs("amazon").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err := s.GetTemplate(context.Background(), "amazon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get template amazon")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTemplates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, definition FROM templates ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "definition"}).
			AddRow("acme", templateJSON(t, sampleTemplate("acme"))).
			AddRow("amazon", templateJSON(t, sampleTemplate("amazon"))))

	got, err := s.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acme", got[0].ID)
	assert.Equal(t, "amazon", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTemplate_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO templates .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("amazon", "Amazon Order", "Amazon", "1.0", true, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveTemplate(context.Background(), sampleTemplate("amazon")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTemplates_Bulk(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_templates"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_templates"}, templateColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "templates" .* WHERE "templates"."content_hash" IS DISTINCT FROM EXCLUDED."content_hash"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.SaveTemplates(context.Background(), []model.Template{sampleTemplate("acme"), sampleTemplate("amazon")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteTemplate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM templates WHERE id = \$1`).
		WithArgs("amazon").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteTemplate(context.Background(), "amazon")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTestResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO test_results`).
		WithArgs(pgxmock.AnyArg(), "amazon", "abc123", "doc-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := sampleRecord("amazon", time.Time{})
	require.NoError(t, s.SaveTestResult(context.Background(), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTestResults_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"test_results"}, resultColumns).WillReturnResult(2)

	recs := []model.TestRecord{sampleRecord("amazon", time.Time{}), sampleRecord("acme", time.Time{})}
	n, err := s.SaveTestResults(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NotEmpty(t, recs[0].ID)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTestResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	result, err := json.Marshal(sampleRecord("amazon", at).Result)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, template_id, template_hash, document_id, result, tested_at FROM test_results`).
		WithArgs("amazon", DefaultResultLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "template_id", "template_hash", "document_id", "result", "tested_at"}).
			AddRow("r1", "amazon", "abc123", "doc-1", result, at))

	recs, err := s.ListTestResults(context.Background(), "amazon", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].ID)
	assert.True(t, recs[0].Result.Success)
	assert.Equal(t, at, recs[0].TestedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTestResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	result, err := json.Marshal(sampleRecord("amazon", at).Result)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM test_results WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "template_id", "template_hash", "document_id", "result", "tested_at"}).
			AddRow("r1", "amazon", "abc123", "doc-1", result, at))

	rec, err := s.GetTestResult(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "amazon", rec.TemplateID)
	assert.True(t, rec.Result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTestResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM test_results WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetTestResult(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}
