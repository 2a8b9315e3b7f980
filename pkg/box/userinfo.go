package box

import "reflect"

// UserInfo is the untyped side-channel map attached to a posted notification.
type UserInfo map[string]any

// Equaler is implemented by values that define their own equality.
type Equaler interface {
	Equal(other any) bool
}

// Equal reports whether u and other hold the same keys with equal values.
// Sizes are compared before any key is visited, so a strict subset never
// compares equal and the result does not depend on argument order.
func (u UserInfo) Equal(other UserInfo) bool {
	return Equal(u, other)
}

// Get returns the raw value stored under key.
func (u UserInfo) Get(key string) (any, bool) {
	v, ok := u[key]
	return v, ok
}

// Clone returns a shallow copy of u. Nil stays nil.
func (u UserInfo) Clone() UserInfo {
	if u == nil {
		return nil
	}
	out := make(UserInfo, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Equal reports whether two UserInfo maps are structurally equal.
// A nil map and an empty map are equal.
func Equal(a, b UserInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

// valuesEqual compares two side-channel values: a user-defined Equal method
// wins, then == for comparable values, then reflect.DeepEqual.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	if eq, ok := b.(Equaler); ok {
		return eq.Equal(a)
	}

	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	// Typed Equal methods such as time.Time.Equal(time.Time).
	if m := av.MethodByName("Equal"); m.IsValid() {
		mt := m.Type()
		if mt.NumIn() == 1 && mt.NumOut() == 1 &&
			mt.Out(0).Kind() == reflect.Bool && bv.Type().AssignableTo(mt.In(0)) {
			return m.Call([]reflect.Value{bv})[0].Bool()
		}
	}
	if av.Comparable() && bv.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
