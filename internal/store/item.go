package store

import (
	"encoding/json"
	"fmt"
	"iter"
)

const IDField = "id"

// Item is a schemaless document stored in a container.
type Item map[string]any

func (it Item) ID() string {
	return it.String(IDField)
}

// String returns the field as a string, or "" when it is absent or not a string.
func (it Item) String(field string) string {
	s, _ := it[field].(string)
	return s
}

// Clone returns a deep copy of the item by round-tripping it through JSON,
// which also normalises values to the shapes a document store hands back.
func (it Item) Clone() (Item, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return out, nil
}

// Encode converts a JSON-tagged struct into an Item.
func Encode(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	var it Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return it, nil
}

// Decode converts an Item into T using its JSON tags.
func Decode[T any](it Item) (T, error) {
	var out T
	data, err := json.Marshal(it)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode item %q: %w", it.ID(), err)
	}
	return out, nil
}

// Collect drains a query sequence, stopping at the first error.
func Collect(seq iter.Seq2[Item, error]) ([]Item, error) {
	items := []Item{}
	for it, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// CollectAs drains a query sequence and decodes every item into T.
func CollectAs[T any](seq iter.Seq2[Item, error]) ([]T, error) {
	out := []T{}
	for it, err := range seq {
		if err != nil {
			return nil, err
		}
		v, err := Decode[T](it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
