// Package store persists the spell collection between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/petal-labs/spellbook/spell"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrEmptyPath is returned when a store is configured without a location.
var ErrEmptyPath = errors.New("store: path is empty")

// Collection is the persisted set of spells keyed by ID.
type Collection map[string]spell.Spell

// LoadResult is the outcome of a Load. Skipped counts entries that were
// present but failed validation.
type LoadResult struct {
	Spells  Collection
	Skipped int
}

// Store loads and saves the whole spell collection. Implementations never
// fail a Load because of corrupt content: unusable entries are skipped.
type Store interface {
	Load(ctx context.Context) (LoadResult, error)
	Save(ctx context.Context, spells Collection) error
	Clear(ctx context.Context) error
}

// Open returns the store for driver at path. Callers release it with Close.
func Open(driver, path string, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverFile:
		if strings.TrimSpace(path) == "" {
			return nil, ErrEmptyPath
		}
		return NewFileStore(path, opts...), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(path, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// Close releases resources held by s, if any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FindByName returns the spell with the given name.
func (c Collection) FindByName(name string) (spell.Spell, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return spell.Spell{}, false
}

// Put adds or replaces s, keyed by its ID.
func (c Collection) Put(s spell.Spell) {
	c[s.ID] = s
}

// Remove deletes the spell with the given name and reports whether it existed.
func (c Collection) Remove(name string) bool {
	s, ok := c.FindByName(name)
	if ok {
		delete(c, s.ID)
	}
	return ok
}

// Sorted returns the spells ordered by name, then ID.
func (c Collection) Sorted() []spell.Spell {
	out := make([]spell.Spell, 0, len(c))
	for _, s := range c {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b spell.Spell) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (c Collection) byID() []spell.Spell {
	out := make([]spell.Spell, 0, len(c))
	for _, s := range c {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b spell.Spell) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
