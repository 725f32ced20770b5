package store

import (
	"errors"
	"testing"
)

func TestFilter_Matches(t *testing.T) {
	it := Item{"id": "1", "category": "Home", "quantity": float64(2)}

	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"all", All(), true},
		{"equal string", Where("category", "Home"), true},
		{"different string", Where("category", "Office"), false},
		{"int matches decoded number", Where("quantity", 2), true},
		{"missing field", Where("name", "Mug"), false},
		{"conjunction", Where("id", "1").And("category", "Home"), true},
		{"conjunction fails", Where("id", "1").And("category", "Office"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Matches(it); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFilter_AndDoesNotAlias(t *testing.T) {
	base := Where("user_id", "u1")
	a := base.And("id", "a")
	b := base.And("id", "b")

	if a.Values()["id"] != "a" || b.Values()["id"] != "b" {
		t.Fatalf("filters share conditions: %v %v", a.Values(), b.Values())
	}
	if len(base.Conditions()) != 1 {
		t.Fatalf("expected base filter untouched, got %d conditions", len(base.Conditions()))
	}
}

func TestFilter_Partition(t *testing.T) {
	v, ok := Where("user_id", "u1").And("id", "x").Partition("user_id")
	if !ok || v != "u1" {
		t.Fatalf("expected pinned partition u1, got %q %v", v, ok)
	}
	if _, ok := All().Partition("user_id"); ok {
		t.Fatal("expected no pinned partition")
	}
}

func TestFilter_Validate(t *testing.T) {
	if err := Where("product_id", "1").validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Where("doc->>'x'", "1").validate(); err == nil {
		t.Fatal("expected invalid field error")
	}
	if err := All().Limit(-1).validate(); err == nil {
		t.Fatal("expected negative limit error")
	}
}

func TestFilter_ValidateRejectsCompositeValues(t *testing.T) {
	valid := []Filter{
		Where("quantity", 2),
		Where("price", 7.49),
		Where("active", true),
		Where("description", nil),
	}
	for _, f := range valid {
		if err := f.validate(); err != nil {
			t.Errorf("unexpected error for %v: %v", f.Conditions(), err)
		}
	}

	composite := []Filter{
		Where("items", []any{"a"}),
		Where("user_id", "u1").And("meta", map[string]any{"k": "v"}),
		Where("items", []lineItem{{ID: "a"}}),
	}
	for _, f := range composite {
		if err := f.validate(); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("expected ErrInvalidFilter for %v, got %v", f.Conditions(), err)
		}
	}
}

type lineItem struct {
	ID string `json:"id"`
}
