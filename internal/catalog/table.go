package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Source is the durable store behind one entity kind.
// Lookup returns (nil, nil) when no entry matches the key.
// Insert returns ErrDuplicate (possibly wrapped) on a UNIQUE violation.
type Source[T any] interface {
	Lookup(ctx context.Context, key Key) (*T, error)
	Insert(ctx context.Context, value *T) (int64, error)
}

// Cache stores copies of catalog values under string keys.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (*T, bool, error)
	Set(ctx context.Context, key string, value *T) error
	Delete(ctx context.Context, key string) error
}

// Spec describes how a Table addresses values of one kind.
type Spec[T any] struct {
	Kind  string
	Keys  func(*T) []Key // logical keys, excluding the id key
	ID    func(*T) int64
	SetID func(*T, int64)
}

// Table is the cache-aside component for one entity kind.
type Table[T any] struct {
	spec   Spec[T]
	source Source[T]
	cache  Cache[T]
}

// NewTable wires a table from its spec, durable source and cache.
func NewTable[T any](spec Spec[T], source Source[T], cache Cache[T]) *Table[T] {
	return &Table[T]{spec: spec, source: source, cache: cache}
}

// Kind returns the entity kind name.
func (t *Table[T]) Kind() string {
	return t.spec.Kind
}

// Get returns the entry addressed by key, (nil, nil) when absent.
func (t *Table[T]) Get(ctx context.Context, key Key) (*T, error) {
	cached, ok, err := t.cache.Get(ctx, key.String())
	if err != nil {
		return nil, t.cacheError("get", err)
	}
	if ok {
		return cached, nil
	}

	value, err := t.source.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	if err := t.populate(ctx, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Add inserts value unless an entry already matches one of its logical keys,
// in which case the existing id is returned without writing.
func (t *Table[T]) Add(ctx context.Context, value *T) (int64, error) {
	if value == nil {
		return 0, fmt.Errorf("%s: add nil value", t.spec.Kind)
	}
	if existing, err := t.findExisting(ctx, value); err != nil {
		return 0, err
	} else if existing != nil {
		return t.spec.ID(existing), nil
	}

	id, err := t.source.Insert(ctx, value)
	if errors.Is(err, ErrDuplicate) {
		// Lost a concurrent insert race; the winner's row is authoritative.
		winner, lookupErr := t.findExisting(ctx, value)
		if lookupErr != nil {
			return 0, lookupErr
		}
		if winner != nil {
			return t.spec.ID(winner), nil
		}
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	t.spec.SetID(value, id)
	if err := t.populate(ctx, value); err != nil {
		return 0, err
	}
	return id, nil
}

// Update loads the entry addressed by key, applies mutate to a copy, persists the
// copy, and only then refreshes the cache. Keys the mutation retired are evicted.
func (t *Table[T]) Update(ctx context.Context, key Key, persist func(context.Context, *T) error, mutate func(*T)) (*T, error) {
	current, err := t.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%s %s: %w", t.spec.Kind, key, ErrNotFound)
	}

	updated := *current
	mutate(&updated)
	if err := persist(ctx, &updated); err != nil {
		return nil, err
	}

	retained := make(map[string]struct{})
	for _, k := range t.allKeys(&updated) {
		retained[k.String()] = struct{}{}
	}
	for _, k := range t.allKeys(current) {
		if _, ok := retained[k.String()]; ok {
			continue
		}
		if err := t.cache.Delete(ctx, k.String()); err != nil {
			return nil, t.cacheError("delete", err)
		}
	}
	if err := t.populate(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Evict drops every cached key of value. The store is untouched.
func (t *Table[T]) Evict(ctx context.Context, value *T) error {
	for _, k := range t.allKeys(value) {
		if err := t.cache.Delete(ctx, k.String()); err != nil {
			return t.cacheError("delete", err)
		}
	}
	return nil
}

func (t *Table[T]) findExisting(ctx context.Context, value *T) (*T, error) {
	for _, key := range t.spec.Keys(value) {
		if key.Value == "" {
			continue
		}
		existing, err := t.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, nil
}

func (t *Table[T]) populate(ctx context.Context, value *T) error {
	for _, key := range t.allKeys(value) {
		if err := t.cache.Set(ctx, key.String(), value); err != nil {
			return t.cacheError("set", err)
		}
	}
	return nil
}

func (t *Table[T]) allKeys(value *T) []Key {
	keys := make([]Key, 0, 4)
	for _, key := range t.spec.Keys(value) {
		if key.Value != "" {
			keys = append(keys, key)
		}
	}
	if id := t.spec.ID(value); id > 0 {
		keys = append(keys, IDKey(id))
	}
	return keys
}

func (t *Table[T]) cacheError(op string, err error) error {
	return fmt.Errorf("%s cache %s: %w", t.spec.Kind, op, err)
}
