package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithCreatesAndKeepsValue(t *testing.T) {
	store := New(Config{}, func(key string) []string { return []string{"created:" + key} })
	ctx := context.Background()

	require.NoError(t, store.With(ctx, "slack:U1", func(value *[]string) error {
		*value = append(*value, "first")
		return nil
	}))
	var seen []string
	require.NoError(t, store.With(ctx, "slack:U1", func(value *[]string) error {
		seen = append(seen, (*value)...)
		return nil
	}))
	require.Equal(t, []string{"created:slack:U1", "first"}, seen)
	require.Equal(t, 1, store.Len())
}

func TestWithRejectsEmptyKey(t *testing.T) {
	store := New[int](Config{}, nil)
	err := store.With(context.Background(), "  ", func(*int) error { return nil })
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestWithReturnsCallbackError(t *testing.T) {
	store := New[int](Config{}, nil)
	boom := errors.New("boom")
	err := store.With(context.Background(), "k", func(value *int) error {
		*value = 7
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.With(context.Background(), "k", func(value *int) error {
		require.Equal(t, 7, *value)
		return nil
	}))
}

func TestWithSerializesSameKey(t *testing.T) {
	store := New[int](Config{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.With(ctx, "shared", func(value *int) error {
				current := *value
				time.Sleep(time.Millisecond)
				*value = current + 1
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, store.With(ctx, "shared", func(value *int) error {
		require.Equal(t, 50, *value)
		return nil
	}))
}

func TestWithHonorsContextWhileWaiting(t *testing.T) {
	store := New[int](Config{}, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.With(context.Background(), "busy", func(*int) error {
			close(entered)
			<-unblock
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := store.With(ctx, "busy", func(*int) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(unblock)
	<-done
}

func TestResetDropsValue(t *testing.T) {
	store := New[int](Config{}, nil)
	ctx := context.Background()
	require.NoError(t, store.With(ctx, "k", func(value *int) error {
		*value = 3
		return nil
	}))
	store.Reset("k")
	require.NoError(t, store.With(ctx, "k", func(value *int) error {
		require.Zero(t, *value)
		return nil
	}))
}

func TestIdleEntriesExpire(t *testing.T) {
	store := New[int](Config{IdleTTL: 20 * time.Millisecond}, nil)
	ctx := context.Background()
	require.NoError(t, store.With(ctx, "k", func(value *int) error {
		*value = 9
		return nil
	}))
	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, store.With(ctx, "k", func(value *int) error {
		require.Zero(t, *value)
		return nil
	}))
}

func TestMaxEntriesEvictsLeastRecent(t *testing.T) {
	store := New[int](Config{MaxEntries: 2}, nil)
	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.With(ctx, key, func(value *int) error {
			*value = 1
			return nil
		}))
	}
	require.Equal(t, 2, store.Len())
	require.NoError(t, store.With(ctx, "a", func(value *int) error {
		require.Zero(t, *value)
		return nil
	}))
}
