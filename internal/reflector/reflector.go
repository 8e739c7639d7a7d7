// Package reflector derives stable type names used to route events
// through registries and wire formats. Lookups are cached.
package reflector

import (
	"reflect"
	"sync"
)

var (
	mu    sync.RWMutex
	cache = make(map[reflect.Type]string)
)

// NameOf returns the stable name for the dynamic type of x.
// Pointer types resolve to their element type, so *T and T share a name.
func NameOf(x any) string {
	return nameForType(reflect.TypeOf(x))
}

// NameFor returns the stable name for T.
func NameFor[T any]() string {
	return nameForType(reflect.TypeOf((*T)(nil)).Elem())
}

func nameForType(t reflect.Type) string {
	if t == nil {
		return ""
	}

	mu.RLock()
	name, ok := cache[t]
	mu.RUnlock()
	if ok {
		return name
	}

	e := t
	if e.Kind() == reflect.Pointer {
		e = e.Elem()
	}
	name = e.PkgPath() + "." + e.Name()

	mu.Lock()
	cache[t] = name
	mu.Unlock()
	return name
}
