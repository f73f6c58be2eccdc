package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// OptionIDs is a set of selected option ids stored as a json array.
type OptionIDs []uint

// Normalize returns a sorted, de-duplicated copy.
func (ids OptionIDs) Normalize() OptionIDs {
	out := make(OptionIDs, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SameSet reports whether both hold exactly the same ids, ignoring order.
func (ids OptionIDs) SameSet(other OptionIDs) bool {
	a, b := ids.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (ids OptionIDs) Value() (driver.Value, error) {
	if ids == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(ids))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (ids *OptionIDs) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*ids = OptionIDs{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into OptionIDs", value)
	}
	var out []uint
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*ids = OptionIDs(out)
	return nil
}
