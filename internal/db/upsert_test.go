package db

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "templates",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "templates",
		ConflictKeys: []string{"id"},
	}, [][]any{{"amazon", "Amazon"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "templates",
		Columns: []string{"id", "name"},
	}, [][]any{{"amazon", "Amazon"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "name"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_templates" \(LIKE "templates"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_templates"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "templates" .* ON CONFLICT \("id"\) DO UPDATE SET "name" = EXCLUDED."name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "templates",
		Columns:      cols,
		ConflictKeys: []string{"id"},
	}, [][]any{{"amazon", "Amazon"}, {"acme", "Acme"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_templates"}, []string{"id", "name"}).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "templates",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"amazon", "Amazon"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for templates")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	base := UpsertConfig{
		Table:        "invoice.templates",
		Columns:      []string{"id", "name", "content_hash"},
		ConflictKeys: []string{"id"},
	}

	t.Run("all non-key columns", func(t *testing.T) {
		got := upsertSQL(base, tempTable(base.Table))
		assert.Equal(t,
			`INSERT INTO "invoice"."templates" ("id", "name", "content_hash") SELECT "id", "name", "content_hash" FROM "_tmp_upsert_invoice_templates" `+
				`ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "content_hash" = EXCLUDED."content_hash"`,
			got)
	})

	t.Run("changed when", func(t *testing.T) {
		cfg := base
		cfg.UpdateCols = []string{"name"}
		cfg.ChangedWhen = "content_hash"
		got := upsertSQL(cfg, "tmp")
		assert.Contains(t, got, `DO UPDATE SET "name" = EXCLUDED."name" WHERE "invoice"."templates"."content_hash" IS DISTINCT FROM EXCLUDED."content_hash"`)
	})

	t.Run("key only", func(t *testing.T) {
		cfg := UpsertConfig{Table: "seen", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
		assert.True(t, strings.HasSuffix(upsertSQL(cfg, "tmp"), "DO NOTHING"))
	})
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"templates", `"templates"`},
		{"invoice.templates", `"invoice"."templates"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "definition"`, quoteAndJoin([]string{"id", "name", "definition"}))
}
