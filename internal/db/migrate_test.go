package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsSkipsComments(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)

	for _, s := range stmts {
		assert.False(t, strings.HasPrefix(s, "--"), "statement starts with a comment: %q", s)
		assert.NotContains(t, s, "wholesale catalog, refreshed")
	}
}

func TestSchemaCoversCoreTables(t *testing.T) {
	joined := strings.Join(Statements(), "\n")
	for _, table := range []string{"vendors", "products", "price_history", "invoices", "invoice_lines", "awg_catalog", "catalog_imports"} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, joined, "UNIQUE (vendor_id, invoice_number)")
}
