package effects

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/mtpscript/runtime/value"
)

// These exercise DbRead/DbWrite against a real Postgres instance when
// MTPSCRIPT_TEST_DB_DSN is set, matching the teacher pack's own
// DSN-gated integration test style rather than mocking pgx.
func connectTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("MTPSCRIPT_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("MTPSCRIPT_TEST_DB_DSN is required for effects DB integration tests")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestDbWriteThenDbRead(t *testing.T) {
	pool := connectTestPool(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `CREATE TEMP TABLE mtp_effects_test (id INT PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	write := DbWrite{Pool: pool}
	writeArgs := value.Record([]value.Field{
		{Name: "statement", Value: value.String(`INSERT INTO mtp_effects_test (id, label) VALUES (1, 'hi')`)},
		{Name: "params", Value: value.List(nil)},
	})
	rowsJSON, err := write.Invoke(ctx, writeArgs)
	require.NoError(t, err)
	require.Equal(t, value.JSONInt, rowsJSON.Kind())
	require.Equal(t, int64(1), rowsJSON.Int())

	read := DbRead{Pool: pool}
	readArgs := value.Record([]value.Field{
		{Name: "query", Value: value.String(`SELECT label FROM mtp_effects_test WHERE id = 1`)},
		{Name: "params", Value: value.List(nil)},
	})
	resultJSON, err := read.Invoke(ctx, readArgs)
	require.NoError(t, err)
	require.Equal(t, value.JSONArray, resultJSON.Kind())
	require.Len(t, resultJSON.Array(), 1)
}

func TestDbWriteRollsBackOnFailure(t *testing.T) {
	pool := connectTestPool(t)
	ctx := context.Background()

	write := DbWrite{Pool: pool}
	args := value.Record([]value.Field{
		{Name: "statement", Value: value.String(`INSERT INTO no_such_table_mtp (id) VALUES (1)`)},
		{Name: "params", Value: value.List(nil)},
	})
	_, err := write.Invoke(ctx, args)
	require.Error(t, err)
}
