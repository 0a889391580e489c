package publisher

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPublisher counts lines and fails on any line equal to "fail".
type countingPublisher struct {
	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func (c *countingPublisher) PublishLines(ctx context.Context, r io.Reader) (int, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxActive.Load()
		if n <= m || c.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(c.delay)

	count := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if scanner.Text() == "fail" {
			return count, errors.New("publish failed")
		}
		count++
	}
	return count, scanner.Err()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFilePool(t *testing.T) {
	files := []string{"a.jsonl", "b.jsonl"}
	pool := NewFilePool(files, 5, nil)

	assert.Equal(t, files, pool.files)
	assert.Equal(t, 5, cap(pool.semaphore), "Semaphore should have capacity of maxConcurrent")
	assert.NotNil(t, pool.errors)

	assert.Equal(t, 1, cap(NewFilePool(files, 0, nil).semaphore))
}

func TestFilePool_PublishAll(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.jsonl", "1\n2\n3\n"),
		writeFile(t, dir, "b.jsonl", "1\n"),
	}

	pool := NewFilePool(files, 2, nil)
	n, err := pool.PublishAll(context.Background(), &countingPublisher{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, pool.Errors())
}

func TestFilePool_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.jsonl", "1\n2\n")
	bad := writeFile(t, dir, "bad.jsonl", "1\nfail\n2\n")
	missing := filepath.Join(dir, "missing.jsonl")

	pool := NewFilePool([]string{good, bad, missing}, 3, nil)
	n, err := pool.PublishAll(context.Background(), &countingPublisher{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish 2 files")
	assert.Equal(t, 3, n, "lines published before a failure still count")

	errs := pool.Errors()
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, bad)
	assert.Contains(t, errs, missing)
	assert.ErrorIs(t, errs[missing], os.ErrNotExist)
}

func TestFilePool_Stdin(t *testing.T) {
	pool := NewFilePool([]string{Stdin}, 1, nil)
	pool.stdin = strings.NewReader("a\nb\n")

	n, err := pool.PublishAll(context.Background(), &countingPublisher{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFilePool_ConcurrencyLimit(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files = append(files, writeFile(t, dir, name, "1\n"))
	}

	pub := &countingPublisher{delay: 20 * time.Millisecond}
	pool := NewFilePool(files, 2, nil)
	n, err := pool.PublishAll(context.Background(), pub)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.LessOrEqual(t, pub.maxActive.Load(), int32(2))
}

func TestFilePool_Errors(t *testing.T) {
	pool := NewFilePool([]string{"a", "b"}, 5, nil)

	pool.mu.Lock()
	pool.errors["a"] = errors.New("test error 1")
	pool.errors["b"] = errors.New("test error 2")
	pool.mu.Unlock()

	errs := pool.Errors()
	assert.Len(t, errs, 2)
	assert.Equal(t, "test error 1", errs["a"].Error())

	// Modifying the returned map must not affect the pool
	errs["c"] = errors.New("added error")
	pool.mu.Lock()
	_, exists := pool.errors["c"]
	pool.mu.Unlock()
	assert.False(t, exists)
}
