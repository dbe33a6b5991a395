package bed

import (
	"sort"
	"strings"
)

// Direction orders a sorted view.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// ParseDirection accepts the long and short spellings. Anything else is ascending.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending":
		return Descending
	}
	return Ascending
}

// SortConfig is the active sort column and direction. A zero Key means unsorted.
type SortConfig struct {
	Key       Field     `json:"key"`
	Direction Direction `json:"direction"`
}

// DefaultSort shows the most recently edited beds first.
var DefaultSort = SortConfig{Key: FieldLastEditedDate, Direction: Descending}

// Toggle returns the config after a header click on key: the same key
// flips from ascending to descending, anything else starts ascending.
func (c SortConfig) Toggle(key Field) SortConfig {
	if c.Key == key && c.Direction == Ascending {
		return SortConfig{Key: key, Direction: Descending}
	}
	return SortConfig{Key: key, Direction: Ascending}
}

// Matches reports whether any attribute of r contains term, ignoring case.
// term must already be trimmed and lower-cased.
func (r Record) Matches(term string) bool {
	for _, f := range RecordFields {
		v, _ := r.Value(f)
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// Derive filters records by a free-text search and orders them by sort.
// The input slice is never modified.
func Derive(records []Record, search string, sortCfg SortConfig) []Record {
	term := strings.ToLower(strings.TrimSpace(search))

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if term == "" || r.Matches(term) {
			out = append(out, r)
		}
	}

	if sortCfg.Key == "" {
		return out
	}

	keys := make([]string, len(out))
	present := make([]bool, len(out))
	for i, r := range out {
		v, ok := r.Value(sortCfg.Key)
		keys[i], present[i] = strings.ToLower(v), ok
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	desc := sortCfg.Direction == Descending
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		switch {
		case !present[i]:
			return false
		case !present[j]:
			return true
		case desc:
			return keys[i] > keys[j]
		default:
			return keys[i] < keys[j]
		}
	})

	sorted := make([]Record, len(out))
	for pos, i := range idx {
		sorted[pos] = out[i]
	}
	return sorted
}
