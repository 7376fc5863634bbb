package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/langsoft/pkg/db"
)

func openScratch(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT)")
	require.NoError(t, err)
	return conn
}

func insert(val string) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO test (val) VALUES (?)", val)
		return err
	}
}

func rowCount(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM test").Scan(&n))
	return n
}

func TestBatchWriterTransactions(t *testing.T) {
	conn := openScratch(t)
	bw := NewBatchWriter(conn, 2, 0)

	require.NoError(t, bw.Submit(insert("A")))
	require.NoError(t, bw.Submit(insert("B")))
	require.NoError(t, bw.Submit(insert("C")))

	done := make(chan error, 1)
	go func() { done <- bw.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for batch commit/close")
	}

	assert.Equal(t, 3, rowCount(t, conn))
	assert.EqualValues(t, 3, bw.Committed())
}

func TestBatchWriterRollback(t *testing.T) {
	conn := openScratch(t)
	bw := NewBatchWriter(conn, 2, 0)
	var reported []error
	var mu sync.Mutex
	bw.OnError = func(e error) {
		mu.Lock()
		reported = append(reported, e)
		mu.Unlock()
	}

	boom := errors.New("intentional error")
	require.NoError(t, bw.Submit(insert("C")))
	require.NoError(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return boom }))

	assert.ErrorIs(t, bw.Close(), boom)
	assert.Len(t, reported, 1)
	assert.Zero(t, rowCount(t, conn), "the whole batch rolls back")
	assert.Zero(t, bw.Committed())
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	bw := NewBatchWriter(nil, 5, 0)
	var mu sync.Mutex
	called := 0
	for i := 0; i < 12; i++ {
		require.NoError(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			mu.Lock()
			called++
			mu.Unlock()
			return nil
		}))
	}
	require.NoError(t, bw.Close())
	assert.Equal(t, 12, called)
}

func TestBatchWriterFlushesOnInterval(t *testing.T) {
	bw := NewBatchWriter(nil, 10, 20*time.Millisecond)
	defer bw.Close()
	ran := make(chan struct{})
	require.NoError(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		close(ran)
		return nil
	}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("buffered write was not flushed by the ticker")
	}
}

func TestBatchWriterExplicitFlush(t *testing.T) {
	bw := NewBatchWriter(nil, 10, 0)
	defer bw.Close()
	ran := make(chan struct{})
	require.NoError(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		close(ran)
		return nil
	}))
	bw.Flush()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Flush did not hand the batch to the committer")
	}
}

func TestBatchWriterRejectsAfterClose(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	require.NoError(t, bw.Close())
	assert.ErrorIs(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return nil }), ErrBatchWriterClosed)
	assert.ErrorIs(t, bw.Close(), ErrBatchWriterClosed)
}
