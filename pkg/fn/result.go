// Package fn holds the small functional helpers the pipeline is assembled from:
// a Result type for fallible stages, retry with backoff, bounded fan-out.
package fn

import "fmt"

// Result carries a value or the error that prevented it. A Result with a
// nil error is a success.
type Result[T any] struct {
	val T
	err error
}

func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps a failure. Err(nil) is a success holding T's zero value.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf is Err(fmt.Errorf(format, args...)).
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// FromPair lifts a (value, error) return.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Error returns the failure, or nil for a success.
func (r Result[T]) Error() error { return r.err }
