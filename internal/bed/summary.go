package bed

import (
	"sort"
	"strings"
)

// Counts is the per-status tally for one bed-type label.
type Counts struct {
	Assigned     int `json:"assigned"`
	Available    int `json:"available"`
	OutOfService int `json:"outOfService"`
	Total        int `json:"total"`
}

func (c *Counts) add(s Status) bool {
	switch s {
	case StatusAssigned:
		c.Assigned++
	case StatusAvailable:
		c.Available++
	case StatusOutOfService:
		c.OutOfService++
	default:
		return false
	}
	c.Total++
	return true
}

// SummaryEntry is one row of the inventory summary.
type SummaryEntry struct {
	Label string `json:"label"`
	Counts
}

// Summary groups bed counts by effective bed-type label.
type Summary struct {
	buckets map[string]*Counts
}

// EffectiveLabel folds "Other" and its specification into one label.
func EffectiveLabel(r Record) string {
	if r.BedType == TypeOther {
		if name := strings.TrimSpace(r.OtherBedTypeName); name != "" {
			return string(TypeOther) + " (" + name + ")"
		}
	}
	return string(r.BedType)
}

// Summarize counts records by effective label and status. Records whose
// status is not recognized are counted nowhere.
func Summarize(records []Record) Summary {
	s := Summary{buckets: make(map[string]*Counts)}
	for _, r := range records {
		if !r.Status.Valid() {
			continue
		}
		label := EffectiveLabel(r)
		c, ok := s.buckets[label]
		if !ok {
			c = &Counts{}
			s.buckets[label] = c
		}
		c.add(r.Status)
	}
	return s
}

// Get returns the counts for label.
func (s Summary) Get(label string) (Counts, bool) {
	c, ok := s.buckets[label]
	if !ok {
		return Counts{}, false
	}
	return *c, true
}

// Entries returns the buckets sorted alphabetically by label.
func (s Summary) Entries() []SummaryEntry {
	out := make([]SummaryEntry, 0, len(s.buckets))
	for label, c := range s.buckets {
		out = append(out, SummaryEntry{Label: label, Counts: *c})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Label), strings.ToLower(out[j].Label)
		if li != lj {
			return li < lj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Totals sums every bucket.
func (s Summary) Totals() Counts {
	var t Counts
	for _, c := range s.buckets {
		t.Assigned += c.Assigned
		t.Available += c.Available
		t.OutOfService += c.OutOfService
		t.Total += c.Total
	}
	return t
}
