// Package catalog defines the drink model and the storage contract the HTTP
// surface is built on. Backends live in subpackages (memory, redis, postgres)
// and are checked against the shared suite in catalogtest.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no drink has the requested id.
	ErrNotFound = errors.New("drink not found")
	// ErrConflict is returned when a title is already taken by another drink.
	ErrConflict = errors.New("drink title already exists")
	// ErrInvalidDrink wraps every validation failure.
	ErrInvalidDrink = errors.New("invalid drink")
)

// Ingredient is one layer of a drink.
type Ingredient struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// Recipe is an ordered list of ingredients. It decodes from either a JSON
// array or a single ingredient object.
type Recipe []Ingredient

func (r *Recipe) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var one Ingredient
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*r = Recipe{one}
		return nil
	}
	var many []Ingredient
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*r = many
	return nil
}

// Drink is a catalog entry. ID is assigned by the store.
type Drink struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Recipe Recipe `json:"recipe"`
}

// ShortIngredient hides ingredient names from anonymous callers.
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// ShortDrink is the public representation of a drink.
type ShortDrink struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// Short returns the public representation.
func (d Drink) Short() ShortDrink {
	out := ShortDrink{ID: d.ID, Title: d.Title, Recipe: make([]ShortIngredient, 0, len(d.Recipe))}
	for _, in := range d.Recipe {
		out.Recipe = append(out.Recipe, ShortIngredient{Color: in.Color, Parts: in.Parts})
	}
	return out
}

// Long returns the full representation, including ingredient names.
func (d Drink) Long() Drink {
	out := d
	out.Recipe = append(Recipe{}, d.Recipe...)
	return out
}

// Validate checks the invariants every stored drink satisfies.
func (d Drink) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDrink)
	}
	return d.Recipe.Validate()
}

// Validate checks that the recipe has at least one well-formed ingredient.
func (r Recipe) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: recipe needs at least one ingredient", ErrInvalidDrink)
	}
	for i, in := range r {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("%w: ingredient %d has no name", ErrInvalidDrink, i)
		}
		if in.Parts <= 0 {
			return fmt.Errorf("%w: ingredient %d must have a positive number of parts", ErrInvalidDrink, i)
		}
	}
	return nil
}

// Update is a partial modification. Nil fields are left unchanged.
type Update struct {
	Title  *string `json:"title,omitempty"`
	Recipe Recipe  `json:"recipe,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool { return u.Title == nil && u.Recipe == nil }

// Apply returns d with u applied, validated.
func (u Update) Apply(d Drink) (Drink, error) {
	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Recipe != nil {
		d.Recipe = append(Recipe{}, u.Recipe...)
	}
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}
	return d, nil
}

// Store persists drinks. Implementations must be safe for concurrent use.
//
// List returns drinks ordered by id. Create assigns the id and returns the
// stored drink. Update and Delete return ErrNotFound for unknown ids; Create
// and Update return ErrConflict when the title is taken by another drink.
type Store interface {
	List(ctx context.Context) ([]Drink, error)
	Get(ctx context.Context, id int64) (Drink, error)
	Create(ctx context.Context, d Drink) (Drink, error)
	Update(ctx context.Context, id int64, u Update) (Drink, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}
