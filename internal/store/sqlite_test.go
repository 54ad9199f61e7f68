package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-templates/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.SaveTemplate(ctx, sampleTemplate("amazon")))
	rec := sampleRecord("amazon", time.Time{})
	require.NoError(t, st.SaveTestResult(ctx, &rec))
	require.NoError(t, st.Close())

	st, err = NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	got, err := st.GetTemplate(ctx, "amazon")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Amazon", got.Vendor)

	recs, err := st.ListTestResults(ctx, "amazon", 5)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSQLite_ContentHashTracksDefinition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tpl := sampleTemplate("amazon")
	require.NoError(t, st.SaveTemplate(ctx, tpl))
	var first string
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT content_hash FROM templates WHERE id = ?`, "amazon").Scan(&first))

	tpl.Data.Fields[0].Extraction.Regex = `Order number (\S+)`
	require.NoError(t, st.SaveTemplate(ctx, tpl))
	var second string
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT content_hash FROM templates WHERE id = ?`, "amazon").Scan(&second))

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestSQLite_SaveTemplates_RollsBackOnInvalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveTemplates(ctx, []model.Template{sampleTemplate("amazon"), sampleTemplate("")})
	require.Error(t, err)

	all, err := st.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLite_CorruptDefinition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, definition, content_hash) VALUES (?, ?, ?, ?)`,
		"broken", "Broken", "{not json", "x",
	)
	require.NoError(t, err)

	_, err = st.GetTemplate(ctx, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal template broken")
}
