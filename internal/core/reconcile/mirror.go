// Package reconcile keeps an observer's local copy of a collection in step with
// the event stream. Every Apply is idempotent: replaying an event, or receiving
// one for an entity the observer never fetched, leaves the mirror unchanged.
package reconcile

import (
	"slices"
	"sync"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

// Reconciler merges one event into a local collection and reports whether it changed.
type Reconciler interface {
	Apply(ev domain.Event) bool
}

// ApplyAll merges a batch in order and reports whether anything changed.
func ApplyAll(r Reconciler, events []domain.Event) bool {
	changed := false
	for _, ev := range events {
		if r.Apply(ev) {
			changed = true
		}
	}
	return changed
}

// Mirror is an insertion-ordered map.
type Mirror[K comparable, V any] struct {
	mu    sync.RWMutex
	order []K
	items map[K]V
}

func NewMirror[K comparable, V any]() *Mirror[K, V] {
	return &Mirror[K, V]{items: make(map[K]V)}
}

// Reset replaces the contents with a snapshot, keeping snapshot order.
func (m *Mirror[K, V]) Reset(items []V, key func(V) K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = make([]K, 0, len(items))
	m.items = make(map[K]V, len(items))
	for _, v := range items {
		k := key(v)
		if _, dup := m.items[k]; dup {
			continue
		}
		m.order = append(m.order, k)
		m.items[k] = v
	}
}

// Insert adds v unless k is present. front puts it first, as for newest-first lists.
func (m *Mirror[K, V]) Insert(k K, v V, front bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[k]; ok {
		return false
	}
	m.items[k] = v
	if front {
		m.order = slices.Insert(m.order, 0, k)
	} else {
		m.order = append(m.order, k)
	}
	return true
}

func (m *Mirror[K, V]) Remove(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[k]; !ok {
		return false
	}
	delete(m.items, k)
	if i := slices.Index(m.order, k); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return true
}

// RemoveIf drops every entry matching pred and returns how many went.
func (m *Mirror[K, V]) RemoveIf(pred func(V) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	n := 0
	for _, k := range m.order {
		if pred(m.items[k]) {
			delete(m.items, k)
			n++
			continue
		}
		kept = append(kept, k)
	}
	m.order = kept
	return n
}

// Update rewrites the entry at k. fn returns false to leave it as is.
func (m *Mirror[K, V]) Update(k K, fn func(V) (V, bool)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.items[k]
	if !ok {
		return false
	}
	next, changed := fn(cur)
	if changed {
		m.items[k] = next
	}
	return changed
}

func (m *Mirror[K, V]) Get(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[k]
	return v, ok
}

func (m *Mirror[K, V]) List() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]V, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.items[k])
	}
	return out
}

func (m *Mirror[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
