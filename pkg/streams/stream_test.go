package streams

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendStream_AppendsAfterSource(t *testing.T) {
	base := SliceStream([]int{1, 2, 3})
	appended := AppendStream[int](base, 4, 5)

	got, err := All(appended)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
	require.NoError(t, appended.Close())
}

func TestAppendStream_EmptyBase(t *testing.T) {
	base := SliceStream([]int{})
	appended := AppendStream[int](base, 1, 2)

	got, err := All(appended)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

func TestAppendStream_ErrorInSource(t *testing.T) {
	testErr := errors.New("boom")
	base := &errorStream[int]{items: []int{1, 2}, err: testErr}
	appended := AppendStream[int](base, 3, 4)

	got, err := All(appended)
	require.ErrorIs(t, err, testErr)
	require.Equal(t, []int{1, 2}, got)
}

type errorStream[T any] struct {
	items []T
	index int
	err   error
}

func (s *errorStream[T]) Next() bool {
	if s.index < len(s.items) {
		s.index++
		return true
	}

	return false
}

func (s *errorStream[T]) Current() T {
	if s.index > 0 && s.index <= len(s.items) {
		return s.items[s.index-1]
	}

	var zero T

	return zero
}

func (s *errorStream[T]) Err() error {
	if s.index >= len(s.items) {
		return s.err
	}

	return nil
}

func (s *errorStream[T]) Close() error { return nil }

func TestMap(t *testing.T) {
	base := SliceStream([]int{1, 2, 3})
	doubled := Map(base, func(i int) int { return i * 2 })

	got, err := All(doubled)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6}, got)
}

func TestChannelStream_Backpressure(t *testing.T) {
	produced := 0
	s := NewChannelStream[int](context.Background(), 0, func(ctx context.Context, out chan<- int) error {
		for i := 0; i < 5; i++ {
			select {
			case out <- i:
				produced++
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	require.True(t, s.Next())
	require.Equal(t, 0, s.Current())
	require.NoError(t, s.Close())
}

func TestChannelStream_CancelReleasesProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	s := NewChannelStream[int](ctx, 0, func(ctx context.Context, out chan<- int) error {
		close(started)

		select {
		case out <- 1:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	<-started
	cancel()

	for s.Next() {
	}

	require.Error(t, s.Err())
}

func TestChannelStream_DrainsCleanly(t *testing.T) {
	s := NewChannelStream[int](context.Background(), 2, func(ctx context.Context, out chan<- int) error {
		out <- 1
		out <- 2

		return nil
	})

	got, err := All[int](s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)

	select {
	case <-time.After(time.Second):
		t.Fatal("producer goroutine did not finish")
	default:
	}
}
