// Package streams models lazy, finite, non-restartable sequences with explicit
// backpressure: a consumer pulls one item at a time via Next/Current and releases
// upstream resources via Close.
package streams

// Stream is a pull-based sequence of T. Next advances the cursor and reports
// whether a value is available; Current returns the value most recently made
// available by Next. Err reports the terminal error, if any, once Next returns
// false. Close releases any underlying resource (socket, goroutine, channel) and
// is always safe to call more than once.
type Stream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// All drains a stream into a slice. It is meant for small, finite streams
// (e.g. retriever results), never for inference token streams.
func All[T any](stream Stream[T]) ([]T, error) {
	var result []T

	for stream.Next() {
		result = append(result, stream.Current())
	}

	return result, stream.Err()
}
