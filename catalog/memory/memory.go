// Package memory provides an in-process catalog.Store. Data is lost on exit.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ggoodman/drinks-catalog-go/catalog"
)

// Store implements catalog.Store with a mutex-guarded map.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	drinks map[int64]catalog.Drink
	titles map[string]int64
}

var _ catalog.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		drinks: make(map[int64]catalog.Drink),
		titles: make(map[string]int64),
	}
}

func (s *Store) List(ctx context.Context) ([]catalog.Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Drink, 0, len(s.drinks))
	for _, d := range s.drinks {
		out = append(out, d.Long())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (catalog.Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drinks[id]
	if !ok {
		return catalog.Drink{}, catalog.ErrNotFound
	}
	return d.Long(), nil
}

func (s *Store) Create(ctx context.Context, d catalog.Drink) (catalog.Drink, error) {
	if err := d.Validate(); err != nil {
		return catalog.Drink{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.titles[d.Title]; taken {
		return catalog.Drink{}, catalog.ErrConflict
	}
	s.nextID++
	d = d.Long()
	d.ID = s.nextID
	s.drinks[d.ID] = d
	s.titles[d.Title] = d.ID
	return d.Long(), nil
}

func (s *Store) Update(ctx context.Context, id int64, u catalog.Update) (catalog.Drink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.drinks[id]
	if !ok {
		return catalog.Drink{}, catalog.ErrNotFound
	}
	next, err := u.Apply(cur)
	if err != nil {
		return catalog.Drink{}, err
	}
	if owner, taken := s.titles[next.Title]; taken && owner != id {
		return catalog.Drink{}, catalog.ErrConflict
	}
	delete(s.titles, cur.Title)
	s.titles[next.Title] = id
	s.drinks[id] = next
	return next.Long(), nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drinks[id]
	if !ok {
		return catalog.ErrNotFound
	}
	delete(s.drinks, id)
	delete(s.titles, d.Title)
	return nil
}

func (s *Store) Close() error { return nil }
