package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKeyedMutex(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	t.Run("serializes one key", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			maxSeen int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := m.Lock(ctx, "dataset")
				if !assert.NoError(t, err) {
					return
				}
				defer unlock()

				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
		assert.Empty(t, m.locks)
	})

	t.Run("keys are independent", func(t *testing.T) {
		unlockA, err := m.Lock(ctx, "a")
		require.NoError(t, err)
		defer unlockA()

		unlockB, err := m.Lock(ctx, "b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("waiting honours the context", func(t *testing.T) {
		unlock, err := m.Lock(ctx, "busy")
		require.NoError(t, err)

		timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = m.Lock(timeout, "busy")
		assert.True(t, errors.Is(err, ErrUpstream))

		unlock()
		unlock()
		assert.Empty(t, m.locks)
	})
}

func TestRedisLockerUnreachable(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	locker := NewRedisLocker(client, time.Second, zap.New(core))

	t.Run("lock surfaces an upstream error", func(t *testing.T) {
		_, err := locker.Lock(context.Background(), "dataset")
		require.Error(t, err)
		assert.Equal(t, KindUpstream, KindOf(err))
	})

	t.Run("failed release is logged", func(t *testing.T) {
		locker.release("dashjs:lock:dataset", "token")

		entries := logs.FilterMessage("Failed to release dataset lock").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "dashjs:lock:dataset", entries[0].ContextMap()["key"])
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "src.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"a":1}]`), 0o644))
	require.NoError(t, store.Upload(ctx, src, "key.json"))

	dst := filepath.Join(dir, "nested", "dst.json")
	require.NoError(t, store.Download(ctx, "key.json", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, string(got))

	require.NoError(t, store.Delete(ctx, "key.json"))
	require.NoError(t, store.Delete(ctx, "key.json"))

	err = store.Download(ctx, "key.json", dst)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")

	err := Upstream("Failed to fetch file from GCS", cause)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Something went wrong", MessageOf(err, "Something went wrong"))

	err = Forbidden("You are not authorized to access this dataset")
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, "You are not authorized to access this dataset", MessageOf(err, "fallback"))

	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, "fallback", MessageOf(cause, "fallback"))
	assert.Equal(t, "validation_failed", KindValidation.String())
}
