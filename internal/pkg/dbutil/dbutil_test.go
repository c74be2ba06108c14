package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsAndSwapsLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM documents WHERE parent = ? LIMIT ?, ?", []interface{}{"a", 10, 20})
	require.Equal(t, "SELECT id FROM documents WHERE parent = $1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"a", 20, 10}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(fmt.Errorf("boom")))
}
