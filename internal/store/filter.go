package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Condition is a single equality test on a top-level field. Values must be
// scalars: strings, booleans, numbers or nil. Backends that match by
// containment would otherwise treat arrays and objects as subset tests.
type Condition struct {
	Field string
	Value any
}

// Filter is a declarative predicate: all conditions must hold. Values are
// always handed to backends as bound parameters, never spliced into query text.
type Filter struct {
	conds []Condition
	limit int
}

// All matches every item in a container.
func All() Filter {
	return Filter{}
}

func Where(field string, value any) Filter {
	return Filter{conds: []Condition{{Field: field, Value: value}}}
}

func (f Filter) And(field string, value any) Filter {
	conds := make([]Condition, len(f.conds), len(f.conds)+1)
	copy(conds, f.conds)
	f.conds = append(conds, Condition{Field: field, Value: value})
	return f
}

// Limit caps the number of items produced. Zero means unbounded.
func (f Filter) Limit(n int) Filter {
	f.limit = n
	return f
}

func (f Filter) Conditions() []Condition {
	return f.conds
}

func (f Filter) MaxItems() int {
	return f.limit
}

// Values returns the conditions as a field → value map.
func (f Filter) Values() map[string]any {
	m := make(map[string]any, len(f.conds))
	for _, c := range f.conds {
		m[c.Field] = c.Value
	}
	return m
}

// Partition reports the partition value pinned by the filter, if any.
func (f Filter) Partition(partitionKey string) (string, bool) {
	for _, c := range f.conds {
		if c.Field == partitionKey {
			s, ok := c.Value.(string)
			return s, ok
		}
	}
	return "", false
}

// Matches evaluates the filter against an item in memory. Values are
// normalised through JSON first so 2 and 2.0 compare equal, as they would in
// a document store.
func (f Filter) Matches(it Item) bool {
	if len(f.conds) == 0 {
		return true
	}
	want, err := Encode(f.Values())
	if err != nil {
		return false
	}
	for field, v := range want {
		got, ok := it[field]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

func (f Filter) validate() error {
	if f.limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidFilter, f.limit)
	}
	for _, c := range f.conds {
		if !fieldPattern.MatchString(c.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidFilter, c.Field)
		}
		if !isScalar(c.Value) {
			return fmt.Errorf("%w: field %q: value of type %T is not a scalar", ErrInvalidFilter, c.Field, c.Value)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
