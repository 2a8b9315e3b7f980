package center

import "reflect"

// SameSender reports whether a posted sender satisfies a registration's
// sender filter. A nil filter accepts every sender.
//
// Senders are compared by identity: pointers, maps, channels and funcs by
// address, slices by backing array and length. Other comparable values
// compare with ==. Non-comparable values never match.
//
// Pointers to zero-size values may share an address, so two distinct
// *struct{} senders can compare as the same sender.
func SameSender(filter, sender any) bool {
	if filter == nil {
		return true
	}
	if sender == nil {
		return false
	}

	fv := reflect.ValueOf(filter)
	sv := reflect.ValueOf(sender)
	if fv.Type() != sv.Type() {
		return false
	}

	switch fv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fv.Pointer() == sv.Pointer()
	case reflect.Slice:
		return fv.Pointer() == sv.Pointer() && fv.Len() == sv.Len()
	}

	if fv.Comparable() && sv.Comparable() {
		return filter == sender
	}
	return false
}
