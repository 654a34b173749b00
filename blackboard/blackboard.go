// Package blackboard implements the process-scoped typed object store
// threaded through every layer of the agent runtime.
// A Blackboard maps a TypeKey to the ordered list of values bound under that
// key, plus the timestamp of the most recent write. Bindings are immutable
// once added and additive only: nothing is ever removed or mutated in place.
package blackboard

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// TypeKey identifies a binding slot on the Blackboard. Two values share a
// slot when they have the same Go type and the same Label (an empty Label is
// the default, unlabeled slot for that type).
type TypeKey struct {
	Type  reflect.Type
	Label string
}

// String renders the key for diagnostics.
func (k TypeKey) String() string {
	if k.Label == "" {
		return k.Type.String()
	}
	return fmt.Sprintf("%s#%s", k.Type, k.Label)
}

type binding struct {
	values    []any
	updatedAt time.Time
}

// Blackboard is a typed, append-mostly container. It is safe for concurrent
// use; writes are serialized with an internal mutex so concurrent tool
// calls never race on the same binding slot.
type Blackboard struct {
	mu       sync.RWMutex
	bindings map[TypeKey]*binding
}

// New constructs an empty Blackboard.
func New() *Blackboard {
	return &Blackboard{bindings: make(map[TypeKey]*binding)}
}

// AddObject binds value under its declared (dynamic) type. Supply labels to
// additionally bind the same value under one or more labeled slots, so a
// planner precondition keyed on a label can find it independently of type
// based lookups. AddObject never overwrites or removes an existing binding;
// it only appends.
func (b *Blackboard) AddObject(value any, labels ...string) {
	if value == nil {
		return
	}
	t := reflect.TypeOf(value)
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(TypeKey{Type: t}, value, now)
	for _, label := range labels {
		b.appendLocked(TypeKey{Type: t, Label: label}, value, now)
	}
}

func (b *Blackboard) appendLocked(key TypeKey, value any, at time.Time) {
	bnd, ok := b.bindings[key]
	if !ok {
		bnd = &binding{}
		b.bindings[key] = bnd
	}
	bnd.values = append(bnd.values, value)
	bnd.updatedAt = at
}

// All returns every value bound to T's type, oldest first. Returns an empty
// slice (never nil) when nothing is bound.
func All[T any](b *Blackboard) []T {
	var zero T
	key := TypeKey{Type: reflect.TypeOf(&zero).Elem()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	bnd, ok := b.bindings[key]
	if !ok {
		return []T{}
	}
	out := make([]T, 0, len(bnd.values))
	for _, v := range bnd.values {
		out = append(out, v.(T))
	}
	return out
}

// Last returns the most recently bound value assignable to T and true, or
// the zero value and false if nothing compatible is bound. "Compatible"
// means T's own type, or any type bound to T's TypeKey.
func Last[T any](b *Blackboard) (T, bool) {
	var zero T
	key := TypeKey{Type: reflect.TypeOf(&zero).Elem()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	bnd, ok := b.bindings[key]
	if !ok || len(bnd.values) == 0 {
		return zero, false
	}
	return bnd.values[len(bnd.values)-1].(T), true
}

// LastLabeled behaves like Last but looks up the labeled slot for T instead
// of the default unlabeled slot.
func LastLabeled[T any](b *Blackboard, label string) (T, bool) {
	var zero T
	key := TypeKey{Type: reflect.TypeOf(&zero).Elem(), Label: label}
	b.mu.RLock()
	defer b.mu.RUnlock()
	bnd, ok := b.bindings[key]
	if !ok || len(bnd.values) == 0 {
		return zero, false
	}
	return bnd.values[len(bnd.values)-1].(T), true
}

// Has reports whether any value is bound under T's type, driving planner
// preconditions.
func Has[T any](b *Blackboard) bool {
	var zero T
	key := TypeKey{Type: reflect.TypeOf(&zero).Elem()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	bnd, ok := b.bindings[key]
	return ok && len(bnd.values) > 0
}

// UpdatedAt returns the timestamp of the most recent write to T's default
// slot, and false if nothing has ever been bound there.
func UpdatedAt[T any](b *Blackboard) (time.Time, bool) {
	var zero T
	key := TypeKey{Type: reflect.TypeOf(&zero).Elem()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	bnd, ok := b.bindings[key]
	if !ok {
		return time.Time{}, false
	}
	return bnd.updatedAt, true
}

// Keys returns a snapshot of every bound TypeKey, for diagnostics and for the
// Mongo mirror's audit export.
func (b *Blackboard) Keys() []TypeKey {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]TypeKey, 0, len(b.bindings))
	for k := range b.bindings {
		keys = append(keys, k)
	}
	return keys
}

// Updater mutates a Blackboard in place. Tools that raise a replan signal
// (package replan) carry one of these to describe how the blackboard should
// change before the planner is re-invoked.
type Updater func(*Blackboard)
