package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(ctx, "org-1/a-1/costs.csv", strings.NewReader("cost\n10\n"), 8, "text/csv")
	require.NoError(t, err)

	rc, err := store.Open(ctx, "org-1/a-1/costs.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "cost\n10\n", string(b))

	require.NoError(t, store.Delete(ctx, "org-1/a-1/costs.csv"))
	require.NoError(t, store.Delete(ctx, "org-1/a-1/costs.csv"))
	_, err = store.Open(ctx, "org-1/a-1/costs.csv")
	assert.Error(t, err)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "../escape.csv", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", ContentType("a.CSV"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ContentType("b.xlsx"))
	assert.Equal(t, "application/octet-stream", ContentType("c"))
}
