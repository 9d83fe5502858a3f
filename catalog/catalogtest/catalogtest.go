// Package catalogtest holds the behavioral suite every catalog.Store
// implementation must pass.
package catalogtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ggoodman/drinks-catalog-go/catalog"
)

// StoreFactory returns an empty store. The suite closes it when done.
type StoreFactory func(t *testing.T) catalog.Store

// RunStoreTests runs the complete Store test suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("CreateAssignsIDs", func(t *testing.T) { testCreateAssignsIDs(t, factory) })
	t.Run("CreateRejectsInvalid", func(t *testing.T) { testCreateRejectsInvalid(t, factory) })
	t.Run("CreateRejectsDuplicateTitle", func(t *testing.T) { testCreateRejectsDuplicateTitle(t, factory) })
	t.Run("ListOrderedByID", func(t *testing.T) { testListOrderedByID(t, factory) })
	t.Run("ListEmpty", func(t *testing.T) { testListEmpty(t, factory) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, factory) })
	t.Run("UpdatePartial", func(t *testing.T) { testUpdatePartial(t, factory) })
	t.Run("UpdateUnknown", func(t *testing.T) { testUpdateUnknown(t, factory) })
	t.Run("UpdateTitleConflict", func(t *testing.T) { testUpdateTitleConflict(t, factory) })
	t.Run("UpdateKeepsOwnTitle", func(t *testing.T) { testUpdateKeepsOwnTitle(t, factory) })
	t.Run("DeleteFreesTitle", func(t *testing.T) { testDeleteFreesTitle(t, factory) })
	t.Run("DeleteUnknown", func(t *testing.T) { testDeleteUnknown(t, factory) })
	t.Run("ConcurrentCreates", func(t *testing.T) { testConcurrentCreates(t, factory) })
}

func newStore(t *testing.T, factory StoreFactory) catalog.Store {
	t.Helper()
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Drink returns a valid drink titled title.
func Drink(title string) catalog.Drink {
	return catalog.Drink{
		Title: title,
		Recipe: catalog.Recipe{
			{Name: "milk", Color: "grey", Parts: 1},
			{Name: "coffee", Color: "brown", Parts: 3},
		},
	}
}

func mustCreate(t *testing.T, s catalog.Store, d catalog.Drink) catalog.Drink {
	t.Helper()
	got, err := s.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create(%q): %v", d.Title, err)
	}
	return got
}

func testCreateAssignsIDs(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	a := mustCreate(t, s, Drink("flat white"))
	b := mustCreate(t, s, Drink("cortado"))
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Fatalf("expected distinct non-zero ids, got %d and %d", a.ID, b.ID)
	}
	got, err := s.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "flat white" || len(got.Recipe) != 2 || got.Recipe[1].Name != "coffee" || got.Recipe[1].Parts != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func testCreateRejectsInvalid(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	_, err := s.Create(context.Background(), catalog.Drink{Title: "empty"})
	if !errors.Is(err, catalog.ErrInvalidDrink) {
		t.Fatalf("expected ErrInvalidDrink, got %v", err)
	}
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("invalid drink was stored: %+v", list)
	}
}

func testCreateRejectsDuplicateTitle(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	mustCreate(t, s, Drink("mocha"))
	if _, err := s.Create(context.Background(), Drink("mocha")); !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func testListOrderedByID(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	for i := 0; i < 5; i++ {
		mustCreate(t, s, Drink(fmt.Sprintf("drink-%d", i)))
	}
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 drinks, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Fatalf("list not ordered by id: %d before %d", list[i-1].ID, list[i].ID)
		}
	}
}

func testListEmpty(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

func testGetUnknown(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	if _, err := s.Get(context.Background(), 999); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUpdatePartial(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	d := mustCreate(t, s, Drink("americano"))

	title := "long black"
	got, err := s.Update(context.Background(), d.ID, catalog.Update{Title: &title})
	if err != nil {
		t.Fatalf("Update title: %v", err)
	}
	if got.Title != title || len(got.Recipe) != 2 {
		t.Fatalf("title update lost recipe: %+v", got)
	}

	got, err = s.Update(context.Background(), d.ID, catalog.Update{Recipe: catalog.Recipe{{Name: "water", Color: "blue", Parts: 1}}})
	if err != nil {
		t.Fatalf("Update recipe: %v", err)
	}
	if got.Title != title || len(got.Recipe) != 1 || got.Recipe[0].Name != "water" {
		t.Fatalf("recipe update lost title: %+v", got)
	}

	stored, err := s.Get(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Title != title || len(stored.Recipe) != 1 {
		t.Fatalf("update not persisted: %+v", stored)
	}

	if _, err := s.Update(context.Background(), d.ID, catalog.Update{Recipe: catalog.Recipe{}}); !errors.Is(err, catalog.ErrInvalidDrink) {
		t.Fatalf("expected ErrInvalidDrink for empty recipe, got %v", err)
	}
}

func testUpdateUnknown(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	title := "x"
	if _, err := s.Update(context.Background(), 42, catalog.Update{Title: &title}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUpdateTitleConflict(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	mustCreate(t, s, Drink("latte"))
	b := mustCreate(t, s, Drink("cappuccino"))
	title := "latte"
	if _, err := s.Update(context.Background(), b.ID, catalog.Update{Title: &title}); !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := s.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "cappuccino" {
		t.Fatalf("failed update changed title to %q", got.Title)
	}
}

func testUpdateKeepsOwnTitle(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	d := mustCreate(t, s, Drink("espresso"))
	title := "espresso"
	if _, err := s.Update(context.Background(), d.ID, catalog.Update{Title: &title}); err != nil {
		t.Fatalf("re-setting own title: %v", err)
	}
}

func testDeleteFreesTitle(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	d := mustCreate(t, s, Drink("macchiato"))
	if err := s.Delete(context.Background(), d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(context.Background(), d.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("deleted drink still readable: %v", err)
	}
	again := mustCreate(t, s, Drink("macchiato"))
	if again.ID == d.ID {
		t.Fatalf("id %d reused after delete", d.ID)
	}
}

func testDeleteUnknown(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	if err := s.Delete(context.Background(), 7); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testConcurrentCreates(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := make(map[int64]bool, n)
	conflicts := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every other goroutine races for the same title.
			title := fmt.Sprintf("unique-%d", i)
			if i%2 == 0 {
				title = "contested"
			}
			d, err := s.Create(context.Background(), Drink(title))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, catalog.ErrConflict):
				conflicts++
			case err != nil:
				t.Errorf("Create: %v", err)
			default:
				if ids[d.ID] {
					t.Errorf("duplicate id %d", d.ID)
				}
				ids[d.ID] = true
			}
		}(i)
	}
	wg.Wait()
	if len(ids) != n/2+1 || conflicts != n/2-1 {
		t.Fatalf("expected %d creates and %d conflicts, got %d and %d", n/2+1, n/2-1, len(ids), conflicts)
	}
}
