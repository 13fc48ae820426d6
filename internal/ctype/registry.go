package ctype

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Float3 is a three-component vector, registered as "float3" by
// NewDefaultRegistry.
type Float3 [3]float32

// Registry owns a set of type descriptors.
//
// Registries are explicit values: create one with NewRegistry (or
// NewDefaultRegistry), pass it to whatever needs descriptors, and Close it
// when done. Independent registries never share descriptors.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Type
	byGo   map[reflect.Type]*Type
	seed   maphash.Seed
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Type),
		byGo:   make(map[reflect.Type]*Type),
		seed:   maphash.MakeSeed(),
	}
}

// NewDefaultRegistry creates a registry with the built-in value types.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterComparable(r, "float32", float32(0))
	RegisterComparable(r, "float64", float64(0))
	RegisterComparable(r, "int32", int32(0))
	RegisterComparable(r, "int64", int64(0))
	RegisterComparable(r, "bool", false)
	RegisterComparable(r, "string", "")
	RegisterComparable(r, "float3", Float3{})
	return r
}

// Register adds a descriptor for T under name with the given default value.
// Types registered this way have no equality and cannot be constant-folded
// into hashable literals.
//
// Registering the same name or Go type twice panics.
func Register[T any](r *Registry, name string, def T) *Type {
	return r.add(name, newType(name, &opsFor[T]{def: def}, false, reflect.TypeFor[T]()))
}

// RegisterComparable adds a descriptor for a comparable T. The descriptor
// supports IsEqual and Hash.
func RegisterComparable[T comparable](r *Registry, name string, def T) *Type {
	ops := &opsFor[T]{def: def, seed: r.seed}
	ops.eq = func(a, b *T) bool { return *a == *b }
	ops.hsh = func(v *T) uint64 { return maphash.Comparable(ops.seed, *v) }
	return r.add(name, newType(name, ops, true, reflect.TypeFor[T]()))
}

func newType(name string, ops typeOps, hasEquality bool, rt reflect.Type) *Type {
	return &Type{
		name:                  name,
		rtype:                 rt,
		size:                  rt.Size(),
		alignment:             uintptr(rt.Align()),
		triviallyDestructible: !holdsReferences(rt),
		hasEquality:           hasEquality,
		ops:                   ops,
	}
}

func (r *Registry) add(name string, t *Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		panic("ctype: register on closed registry")
	}
	if name == "" || strings.ContainsAny(name, " \t\n") {
		panic(fmt.Sprintf("ctype: invalid type name %q", name))
	}
	if _, ok := r.byName[name]; ok {
		panic(fmt.Sprintf("ctype: type %q registered twice", name))
	}
	if existing, ok := r.byGo[t.rtype]; ok {
		panic(fmt.Sprintf("ctype: Go type %s already registered as %q", t.rtype, existing.name))
	}
	r.byName[name] = t
	r.byGo[t.rtype] = t
	return t
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// MustLookup is like Lookup but panics when the name is unknown.
// Use only in tests or for built-in names.
func (r *Registry) MustLookup(name string) *Type {
	t, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("ctype: unknown type %q", name))
	}
	return t
}

// TypeOf returns the descriptor registered for T. It panics if T is unknown.
func TypeOf[T any](r *Registry) *Type {
	rt := reflect.TypeFor[T]()
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byGo[rt]
	if !ok {
		panic(fmt.Sprintf("ctype: Go type %s is not registered", rt))
	}
	return t
}

// Types returns all descriptors ordered by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Type) int { return strings.Compare(a.name, b.name) })
	return out
}

// Close tears the registry down. Descriptors already handed out stay valid
// for values that still reference them; new lookups fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	clear(r.byName)
	clear(r.byGo)
}
