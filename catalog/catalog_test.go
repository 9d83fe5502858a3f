package catalog

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRecipe_UnmarshalObjectOrArray(t *testing.T) {
	var one Drink
	if err := json.Unmarshal([]byte(`{"title":"water","recipe":{"name":"water","color":"blue","parts":1}}`), &one); err != nil {
		t.Fatalf("object recipe: %v", err)
	}
	if len(one.Recipe) != 1 || one.Recipe[0].Name != "water" {
		t.Fatalf("object recipe decoded as %+v", one.Recipe)
	}

	var many Drink
	if err := json.Unmarshal([]byte(`{"title":"latte","recipe":[{"name":"milk","color":"grey","parts":3},{"name":"coffee","color":"brown","parts":1}]}`), &many); err != nil {
		t.Fatalf("array recipe: %v", err)
	}
	if len(many.Recipe) != 2 || many.Recipe[1].Name != "coffee" {
		t.Fatalf("array recipe decoded as %+v", many.Recipe)
	}

	var bad Drink
	if err := json.Unmarshal([]byte(`{"title":"x","recipe":"milk"}`), &bad); err == nil {
		t.Fatalf("expected error for string recipe")
	}
}

func TestDrink_ShortHidesNames(t *testing.T) {
	d := Drink{ID: 3, Title: "latte", Recipe: Recipe{{Name: "milk", Color: "grey", Parts: 3}}}
	b, err := json.Marshal(d.Short())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"id":3,"title":"latte","recipe":[{"color":"grey","parts":3}]}`; got != want {
		t.Fatalf("short: got %s want %s", got, want)
	}
}

func TestDrink_LongIsACopy(t *testing.T) {
	d := Drink{ID: 1, Title: "a", Recipe: Recipe{{Name: "n", Color: "c", Parts: 1}}}
	l := d.Long()
	l.Recipe[0].Name = "changed"
	if d.Recipe[0].Name != "n" {
		t.Fatalf("Long shares recipe storage")
	}
}

func TestDrink_Validate(t *testing.T) {
	cases := []struct {
		name string
		d    Drink
		ok   bool
	}{
		{"valid", Drink{Title: "a", Recipe: Recipe{{Name: "n", Parts: 1}}}, true},
		{"blank title", Drink{Title: "  ", Recipe: Recipe{{Name: "n", Parts: 1}}}, false},
		{"no recipe", Drink{Title: "a"}, false},
		{"zero parts", Drink{Title: "a", Recipe: Recipe{{Name: "n", Parts: 0}}}, false},
		{"nameless ingredient", Drink{Title: "a", Recipe: Recipe{{Parts: 2}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidDrink) {
				t.Fatalf("expected ErrInvalidDrink, got %v", err)
			}
		})
	}
}

func TestUpdate_Apply(t *testing.T) {
	d := Drink{ID: 1, Title: "a", Recipe: Recipe{{Name: "n", Parts: 1}}}
	title := "b"
	got, err := Update{Title: &title}.Apply(d)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "b" || len(got.Recipe) != 1 || got.ID != 1 {
		t.Fatalf("unexpected result %+v", got)
	}

	empty := ""
	if _, err := (Update{Title: &empty}).Apply(d); !errors.Is(err, ErrInvalidDrink) {
		t.Fatalf("expected ErrInvalidDrink, got %v", err)
	}
	if !(Update{}).Empty() {
		t.Fatalf("zero Update should be empty")
	}
}
