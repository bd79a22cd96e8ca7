package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a node, group, markup or fringe. Ids assigned by the API
// collaborator are positive; placeholder ids are negative.
type ID int64

// IsTemp reports whether id belongs to the placeholder namespace.
func (id ID) IsTemp() bool { return id < 0 }

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseID parses a decimal id as printed by String.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(n), nil
}

// ParseIDs parses a comma separated id list, ignoring empty entries.
func ParseIDs(s string) ([]ID, error) {
	var ids []ID
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ContainsID reports whether ids contains id.
func ContainsID(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AppendUniqueID appends id unless it is already present.
func AppendUniqueID(ids []ID, id ID) []ID {
	if ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID returns ids without any occurrence of id. The second result
// reports whether anything was removed.
func RemoveID(ids []ID, id ID) ([]ID, bool) {
	out := ids[:0:0]
	removed := false
	for _, v := range ids {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

// ReplaceID swaps every occurrence of from with to in place.
func ReplaceID(ids []ID, from, to ID) bool {
	replaced := false
	for i, v := range ids {
		if v == from {
			ids[i] = to
			replaced = true
		}
	}
	return replaced
}
