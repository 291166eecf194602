package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// exerciseTable runs the shared row semantics against any backend.
func exerciseTable(t *testing.T, backend interfaces.Ledger) {
	t.Helper()
	ctx := context.Background()
	table := backend.Table("userRequests")

	// Missing rows report ErrRowNotFound
	_, err := table.Get(ctx, "ALL")
	assert.ErrorIs(t, err, interfaces.ErrRowNotFound)

	// Round trip
	require.NoError(t, table.Set(ctx, "ALL", []byte(`{"ids":[]}`)))
	value, err := table.Get(ctx, "ALL")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ids":[]}`), value)

	// Overwrite
	require.NoError(t, table.Set(ctx, "ALL", []byte(`{"ids":["a"]}`)))
	value, err = table.Get(ctx, "ALL")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ids":["a"]}`), value)

	// Tables are isolated namespaces
	other := backend.Table("users")
	_, err = other.Get(ctx, "ALL")
	assert.ErrorIs(t, err, interfaces.ErrRowNotFound)

	// Keys lists the rows of one table only
	require.NoError(t, table.Set(ctx, "request-1", []byte(`{}`)))
	require.NoError(t, other.Set(ctx, "alice", []byte(`{}`)))
	keys, err := table.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ALL", "request-1"}, keys)

	// Delete removes the row; deleting again is not an error
	require.NoError(t, table.Delete(ctx, "request-1"))
	_, err = table.Get(ctx, "request-1")
	assert.ErrorIs(t, err, interfaces.ErrRowNotFound)
	require.NoError(t, table.Delete(ctx, "request-1"))

	assert.True(t, backend.Available(ctx), "Backend should be available")
}

func TestMemoryLedger(t *testing.T) {
	backend := NewMemoryLedger()
	exerciseTable(t, backend)

	// Stored rows are isolated from caller mutations
	ctx := context.Background()
	table := backend.Table("keys")
	original := []byte(`{"klaveServerPrivateKey":"k"}`)
	require.NoError(t, table.Set(ctx, "ALL", original))
	original[0] = 'X'

	value, err := table.Get(ctx, "ALL")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"klaveServerPrivateKey":"k"}`), value)
	value[0] = 'Y'

	again, err := table.Get(ctx, "ALL")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"klaveServerPrivateKey":"k"}`), again)
}

func TestFileLedger(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileLedger(dir, discardLogger())
	require.NoError(t, err)
	exerciseTable(t, backend)

	// Rows survive reopening the directory
	reopened, err := NewFileLedger(dir, discardLogger())
	require.NoError(t, err)
	value, err := reopened.Table("userRequests").Get(context.Background(), "ALL")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ids":["a"]}`), value)
}

func TestFileLedger_EscapesRowKeys(t *testing.T) {
	backend, err := NewFileLedger(t.TempDir(), discardLogger())
	require.NoError(t, err)

	ctx := context.Background()
	table := backend.Table("identities")
	require.NoError(t, table.Set(ctx, "user@example.com", []byte(`{}`)))

	keys, err := table.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user@example.com"}, keys)

	value, err := table.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), value)
}

func TestBadgerLedger(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBadgerLedger(dir, discardLogger())
	require.NoError(t, err)
	exerciseTable(t, backend)

	// Rows survive closing and reopening the database
	require.NoError(t, backend.Close())
	assert.False(t, backend.Available(context.Background()), "Closed database should be unavailable")

	reopened, err := NewBadgerLedger(dir, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Table("userRequests").Get(context.Background(), "ALL")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ids":["a"]}`), value)
}
