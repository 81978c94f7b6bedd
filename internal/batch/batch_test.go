package batch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgpurge/internal/apperr"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{name: "empty", items: nil, size: 3, want: [][]int{}},
		{name: "exact", items: []int{1, 2, 3, 4}, size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "short tail", items: []int{1, 2, 3, 4, 5}, size: 2, want: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "size larger than input", items: []int{1, 2}, size: 500, want: [][]int{{1, 2}}},
		{name: "size one", items: []int{1, 2, 3}, size: 1, want: [][]int{{1}, {2}, {3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Chunk(tt.items, tt.size)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestChunkLaw(t *testing.T) {
	for n := 0; n < 60; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}

		for size := 1; size <= 13; size++ {
			chunks, err := Chunk(items, size)
			require.NoError(t, err)

			var joined []int
			for i, c := range chunks {
				require.LessOrEqual(t, len(c), size)
				require.NotEmpty(t, c)
				if i < len(chunks)-1 {
					require.Len(t, c, size, "only the final chunk may be short")
				}
				joined = append(joined, c...)
			}

			require.True(t, slices.Equal(items, joined), "n=%d size=%d", n, size)
		}
	}
}

func TestChunkInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunk([]int{1}, size)
		require.Error(t, err)
		require.True(t, apperr.Is(err, apperr.KindValidation))
	}

	_, err := Dispatch(context.Background(), []int{1}, 0, func(ctx context.Context, chunk []int) (int, error) {
		t.Fatal("operation must not be called")
		return 0, nil
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("results in chunk order", func(t *testing.T) {
		got, err := Dispatch(ctx, []int{1, 2, 3, 4, 5}, 2, func(ctx context.Context, chunk []int) (int, error) {
			sum := 0
			for _, v := range chunk {
				sum += v
			}
			return sum, nil
		})
		require.NoError(t, err)
		require.Equal(t, []int{3, 7, 5}, got)
	})

	t.Run("empty input calls nothing", func(t *testing.T) {
		var calls atomic.Int32
		got, err := Dispatch(ctx, []string{}, 10, func(ctx context.Context, chunk []string) (string, error) {
			calls.Add(1)
			return "", nil
		})
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
		require.Zero(t, calls.Load())
	})

	t.Run("chunks run concurrently", func(t *testing.T) {
		// Every chunk blocks until all three have started.
		var started sync.WaitGroup
		started.Add(3)

		done := make(chan error, 1)
		go func() {
			_, err := Dispatch(ctx, []int{1, 2, 3}, 1, func(ctx context.Context, chunk []int) (int, error) {
				started.Done()
				started.Wait()
				return chunk[0], nil
			})
			done <- err
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("chunks did not run concurrently")
		}
	})
}

func TestDispatchFailFast(t *testing.T) {
	errBoom := errors.New("boom")

	var mu sync.Mutex
	var seen [][]int

	got, err := Dispatch(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(ctx context.Context, chunk []int) (int, error) {
		mu.Lock()
		seen = append(seen, chunk)
		mu.Unlock()

		if slices.Equal(chunk, []int{3, 4}) {
			return 0, errBoom
		}
		return len(chunk), nil
	})

	require.ErrorIs(t, err, errBoom)
	require.Nil(t, got)
	require.Len(t, seen, 3)
}
