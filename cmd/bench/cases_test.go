package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQL(t *testing.T) {
	stmts := splitSQL("-- header\nCREATE TABLE a (id int);\n\nCREATE INDEX b ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX b ON a (id)"}, stmts)
}

func TestExtractTablesFromMigration(t *testing.T) {
	tables, err := extractTables(filepath.Join("..", "..", "migrations", "0001_usage_events.sql"))
	require.NoError(t, err)
	assert.Equal(t, []string{"usage_events"}, tables)

	_, err = extractTables(filepath.Join(t.TempDir(), "missing.sql"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLiveCaseSkipsByDefault(t *testing.T) {
	tc := liveCase(Config{}, httpCase("x", "http://127.0.0.1:0", nil, []int{200}, nil))
	assert.Equal(t, "SKIP", tc.Run(t.Context(), nil).Status)
}
