// Package box carries typed values through the untyped UserInfo side channel
// of a notification.
//
// A value is wrapped in a *Box[T] and stored under ValueKey. Decoding is the
// only place a runtime type check happens: asking for any type other than the
// one that was boxed reports a miss instead of panicking.
package box

// ValueKey is the UserInfo key under which Encode stores the boxed value.
const ValueKey = "UserInfoValueKey"

// Box wraps a value of any type, including non-pointer values and nil
// interfaces, so it can travel as a single opaque any.
type Box[T any] struct {
	Value T
}

// New returns a box holding v.
func New[T any](v T) *Box[T] {
	return &Box[T]{Value: v}
}

// Get returns the boxed value.
func (b *Box[T]) Get() T {
	return b.Value
}

// Encode returns a UserInfo containing v boxed under ValueKey.
func Encode[T any](v T) UserInfo {
	return UserInfo{ValueKey: New(v)}
}

// Decode recovers a value boxed by Encode.
// It returns false when info is nil, has no ValueKey entry, or holds a box of
// a different type.
func Decode[T any](info UserInfo) (T, bool) {
	var zero T
	if info == nil {
		return zero, false
	}
	b, ok := info[ValueKey].(*Box[T])
	if !ok || b == nil {
		return zero, false
	}
	return b.Value, true
}
