// Package ledger owns the per-variant stock counters.
//
// Every counter has its own lock, so mutations on one SKU never wait on another.
// A mutation runs validate, commit and apply while holding that lock: the
// caller's commit hook persists the change (and queues its events) and the
// in-memory counter only moves when the hook succeeds.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

type Op string

const (
	OpDecrement Op = "decrement"
	OpIncrement Op = "increment"
	OpCreate    Op = "create"
	OpDelete    Op = "delete"
)

// Mutation describes one change about to be (or just) applied to a counter.
type Mutation struct {
	Op       Op
	Previous domain.StockLevel
	Level    domain.StockLevel
	Delta    int
}

// CrossedLowThreshold reports whether the change moved the counter from above
// its threshold to at or below it.
func (m Mutation) CrossedLowThreshold() bool {
	if m.Op == OpDelete {
		return false
	}
	return m.Level.IsLow() && (m.Op == OpCreate || !m.Previous.IsLow())
}

// CommitFunc persists a mutation. Returning an error leaves the counter untouched.
type CommitFunc func(ctx context.Context, m Mutation) error

type entry struct {
	mu      sync.Mutex
	level   domain.StockLevel
	removed bool
}

type Ledger struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	retiring map[uint]int // jerseys with a DeleteJersey in flight

	commitTimeout time.Duration
}

type Option func(*Ledger)

// WithCommitTimeout bounds how long a commit hook may hold a counter lock.
func WithCommitTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.commitTimeout = d }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{entries: make(map[string]*entry), retiring: make(map[uint]int)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the ledger contents, typically from the persisted variants at startup.
func (l *Ledger) Load(levels []domain.StockLevel) {
	entries := make(map[string]*entry, len(levels))
	for _, lv := range levels {
		entries[lv.SKU] = &entry{level: lv}
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
}

func (l *Ledger) Get(sku string) (domain.StockLevel, bool) {
	e := l.lookup(sku)
	if e == nil {
		return domain.StockLevel{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.StockLevel{}, false
	}
	return e.level, true
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Decrement is the only way a counter goes down. It fails with
// ErrInsufficientStock when qty exceeds the current quantity.
func (l *Ledger) Decrement(ctx context.Context, sku string, qty int, commit CommitFunc) (Mutation, error) {
	if qty < 1 {
		return Mutation{}, fmt.Errorf("%w: decrement quantity must be positive, got %d", domain.ErrInvalidInput, qty)
	}
	return l.adjust(ctx, sku, OpDecrement, -qty, commit)
}

func (l *Ledger) Increment(ctx context.Context, sku string, qty int, commit CommitFunc) (Mutation, error) {
	if qty < 1 {
		return Mutation{}, fmt.Errorf("%w: increment quantity must be positive, got %d", domain.ErrInvalidInput, qty)
	}
	return l.adjust(ctx, sku, OpIncrement, qty, commit)
}

func (l *Ledger) adjust(ctx context.Context, sku string, op Op, delta int, commit CommitFunc) (Mutation, error) {
	e := l.lookup(sku)
	if e == nil {
		return Mutation{}, fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return Mutation{}, fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}
	if err := ctx.Err(); err != nil {
		return Mutation{}, err
	}

	next := e.level.Quantity + delta
	if next < 0 {
		return Mutation{}, fmt.Errorf("%w: %s has %d, requested %d", domain.ErrInsufficientStock, sku, e.level.Quantity, -delta)
	}

	m := Mutation{Op: op, Previous: e.level, Level: e.level, Delta: delta}
	m.Level.Quantity = next
	m.Level.Version++

	if err := l.runCommit(ctx, commit, m); err != nil {
		return Mutation{}, err
	}
	e.level = m.Level
	return m, nil
}

// CreateVariant registers a new counter. It fails with ErrDuplicateSku when the
// SKU is live, including one whose creation is still committing, and with
// ErrNotFound while its jersey is being deleted.
func (l *Ledger) CreateVariant(ctx context.Context, level domain.StockLevel, commit CommitFunc) (Mutation, error) {
	if level.SKU == "" {
		return Mutation{}, fmt.Errorf("%w: empty sku", domain.ErrInvalidInput)
	}
	if level.Quantity < 0 || level.Threshold < 0 {
		return Mutation{}, fmt.Errorf("%w: stock and threshold must not be negative", domain.ErrInvalidInput)
	}
	level.Version = 0

	e := &entry{level: level}
	e.mu.Lock()
	defer e.mu.Unlock()

	l.mu.Lock()
	if l.retiring[level.JerseyID] > 0 {
		l.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: jersey %d is being deleted", domain.ErrNotFound, level.JerseyID)
	}
	if cur, ok := l.entries[level.SKU]; ok && !l.isRemoved(cur) {
		l.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: %s", domain.ErrDuplicateSku, level.SKU)
	}
	l.entries[level.SKU] = e
	l.mu.Unlock()

	m := Mutation{Op: OpCreate, Level: level, Delta: level.Quantity}
	if err := l.runCommit(ctx, commit, m); err != nil {
		e.removed = true
		l.forget(level.SKU, e)
		return Mutation{}, err
	}
	return m, nil
}

// isRemoved peeks at a possibly busy entry. A locked entry is being mutated or
// created and therefore counts as live.
func (l *Ledger) isRemoved(e *entry) bool {
	if !e.mu.TryLock() {
		return false
	}
	defer e.mu.Unlock()
	return e.removed
}

// DeleteVariant removes a counter. Mutations already waiting on it fail with
// ErrUnknownSku once it is gone.
func (l *Ledger) DeleteVariant(ctx context.Context, sku string, commit CommitFunc) (Mutation, error) {
	e := l.lookup(sku)
	if e == nil {
		return Mutation{}, fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return Mutation{}, fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}

	m := Mutation{Op: OpDelete, Previous: e.level, Level: e.level, Delta: -e.level.Quantity}
	m.Level.Quantity = 0
	if err := l.runCommit(ctx, commit, m); err != nil {
		return Mutation{}, err
	}
	e.removed = true
	l.forget(sku, e)
	return m, nil
}

// DeleteJersey removes every counter owned by jerseyID in one step. Locks are
// taken in SKU order. The commit hook sees all removals at once; an empty slice
// means the jersey had no variants. New counters for the jersey are refused
// until the call returns, so the hook's set is complete.
func (l *Ledger) DeleteJersey(ctx context.Context, jerseyID uint, commit func(ctx context.Context, removed []Mutation) error) ([]Mutation, error) {
	type candidate struct {
		sku string
		e   *entry
	}

	l.mu.Lock()
	l.retiring[jerseyID]++
	cands := make([]candidate, 0, len(l.entries))
	for sku, e := range l.entries {
		cands = append(cands, candidate{sku: sku, e: e})
	}
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		if l.retiring[jerseyID]--; l.retiring[jerseyID] <= 0 {
			delete(l.retiring, jerseyID)
		}
		l.mu.Unlock()
	}()
	sort.Slice(cands, func(i, j int) bool { return cands[i].sku < cands[j].sku })

	var locked []candidate
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].e.mu.Unlock()
		}
	}()

	var removed []Mutation
	for _, c := range cands {
		c.e.mu.Lock()
		if c.e.removed || c.e.level.JerseyID != jerseyID {
			c.e.mu.Unlock()
			continue
		}
		locked = append(locked, c)
		m := Mutation{Op: OpDelete, Previous: c.e.level, Level: c.e.level, Delta: -c.e.level.Quantity}
		m.Level.Quantity = 0
		removed = append(removed, m)
	}

	if commit != nil {
		cctx, cancel := l.commitContext(ctx)
		err := commit(cctx, removed)
		cancel()
		if err != nil {
			return nil, err
		}
	}
	for _, c := range locked {
		c.e.removed = true
		l.forget(c.sku, c.e)
	}
	return removed, nil
}

// Levels returns a copy of every live counter ordered by SKU.
func (l *Ledger) Levels() []domain.StockLevel {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	levels := make([]domain.StockLevel, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			levels = append(levels, e.level)
		}
		e.mu.Unlock()
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].SKU < levels[j].SKU })
	return levels
}

func (l *Ledger) lookup(sku string) *entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[sku]
}

// forget drops the map slot only if it still points at e; a newer entry for the
// same SKU may have replaced it.
func (l *Ledger) forget(sku string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[sku] == e {
		delete(l.entries, sku)
	}
}

func (l *Ledger) runCommit(ctx context.Context, commit CommitFunc, m Mutation) error {
	if commit == nil {
		return nil
	}
	cctx, cancel := l.commitContext(ctx)
	defer cancel()
	return commit(cctx, m)
}

func (l *Ledger) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.commitTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.commitTimeout)
}
