package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// IDList is a set of numeric identifiers persisted as a JSON array.
type IDList []int64

// Value implements driver.Valuer.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]int64(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *IDList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("id list: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("id list: %w", err)
	}
	*l = ids
	return nil
}

// Contains reports whether id is present.
func (l IDList) Contains(id int64) bool {
	for _, candidate := range l {
		if candidate == id {
			return true
		}
	}
	return false
}

// Sorted returns a sorted copy with duplicates removed.
func (l IDList) Sorted() IDList {
	out := make(IDList, 0, len(l))
	seen := make(map[int64]struct{}, len(l))
	for _, id := range l {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
