// Package either provides a two-variant result type for explicit
// success/error propagation without panics.
//
// The convention is fixed module-wide: Left carries the error value,
// Right carries the success value.
package either

import "fmt"

// Either holds exactly one of a Left (error) or a Right (success) value.
// It is immutable once constructed; the zero value is a Left holding the
// zero L. Construct with Left or Right.
type Either[L, R any] struct {
	left    L
	right   R
	isRight bool
}

// Left wraps an error value.
func Left[L, R any](l L) Either[L, R] {
	return Either[L, R]{left: l}
}

// Right wraps a success value.
func Right[L, R any](r R) Either[L, R] {
	return Either[L, R]{right: r, isRight: true}
}

// IsRight reports whether e holds a success value.
func (e Either[L, R]) IsRight() bool { return e.isRight }

// IsLeft reports whether e holds an error value.
func (e Either[L, R]) IsLeft() bool { return !e.isRight }

// MustRight returns the success value. It panics with a descriptive message
// when called on a Left; use Fold for exhaustive handling.
func (e Either[L, R]) MustRight() R {
	if !e.isRight {
		panic(fmt.Sprintf("either: MustRight called on Left(%v)", e.left))
	}
	return e.right
}

// MustLeft returns the error value. It panics with a descriptive message
// when called on a Right; use Fold for exhaustive handling.
func (e Either[L, R]) MustLeft() L {
	if e.isRight {
		panic(fmt.Sprintf("either: MustLeft called on Right(%v)", e.right))
	}
	return e.left
}

func (e Either[L, R]) String() string {
	if e.isRight {
		return fmt.Sprintf("Right(%v)", e.right)
	}
	return fmt.Sprintf("Left(%v)", e.left)
}

// Fold applies onLeft or onRight depending on the populated variant.
// The caller must handle both branches; there is no defaulting accessor.
func Fold[L, R, T any](e Either[L, R], onLeft func(L) T, onRight func(R) T) T {
	if e.isRight {
		return onRight(e.right)
	}
	return onLeft(e.left)
}
