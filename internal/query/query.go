// ABOUTME: In-memory predicates and ordering over full-table scans
// ABOUTME: Filters store.Record slices without any server-side pushdown

package query

import (
	"sort"
	"strings"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
)

// Predicate reports whether a record should be kept
type Predicate func(store.Record) bool

// Filter returns the records matching every predicate, preserving order.
// Nil predicates are skipped.
func Filter(records []store.Record, preds ...Predicate) []store.Record {
	out := make([]store.Record, 0, len(records))
	for _, r := range records {
		if matchAll(r, preds) {
			out = append(out, r)
		}
	}
	return out
}

// First returns the first record matching every predicate
func First(records []store.Record, preds ...Predicate) (store.Record, bool) {
	for _, r := range records {
		if matchAll(r, preds) {
			return r, true
		}
	}
	return store.Record{}, false
}

func matchAll(r store.Record, preds []Predicate) bool {
	for _, p := range preds {
		if p != nil && !p(r) {
			return false
		}
	}
	return true
}

// Equals matches records whose field is exactly value.
// An empty value disables the predicate.
func Equals(field, value string) Predicate {
	if value == "" {
		return nil
	}
	return func(r store.Record) bool {
		return r.Get(field) == value
	}
}

// NotEquals matches records whose field differs from value
func NotEquals(field, value string) Predicate {
	return func(r store.Record) bool {
		return r.Get(field) != value
	}
}

// HasTag matches records whose comma-separated field contains tag as a
// whole element, compared case-insensitively after trimming.
// An empty tag disables the predicate.
func HasTag(field, tag string) Predicate {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil
	}
	return func(r store.Record) bool {
		for _, t := range SplitTags(r.Get(field)) {
			if strings.ToLower(t) == tag {
				return true
			}
		}
		return false
	}
}

// ContainsFold matches records where value occurs, ignoring case, in the
// space-joined fields. An empty value disables the predicate.
func ContainsFold(value string, fields ...string) Predicate {
	if value == "" {
		return nil
	}
	needle := strings.ToLower(value)
	return func(r store.Record) bool {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = r.Get(f)
		}
		return strings.Contains(strings.ToLower(strings.Join(parts, " ")), needle)
	}
}

// After matches records whose timestamp field sorts strictly after since.
// An empty since disables the predicate.
func After(field, since string) Predicate {
	if since == "" {
		return nil
	}
	return func(r store.Record) bool {
		return r.Get(field) > since
	}
}

// SortByTimeDesc orders records newest first by a stored timestamp field.
// Comparison is lexicographic, which is chronological for store.TimestampLayout.
func SortByTimeDesc(records []store.Record, field string) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Get(field) > records[j].Get(field)
	})
}

// SortByTimeAsc orders records oldest first by a stored timestamp field
func SortByTimeAsc(records []store.Record, field string) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Get(field) < records[j].Get(field)
	})
}

// SplitTags splits a comma-separated tag list, dropping empty elements
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
