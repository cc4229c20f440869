// ABOUTME: Gallery post filter built from the query predicates
// ABOUTME: author, tag, subject and free-text criteria, newest first

package query

import "github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"

// PostFilter holds the optional gallery criteria. Zero values match everything.
type PostFilter struct {
	AuthorID string
	Tag      string
	Subject  string
	Text     string
}

// Predicates converts the filter into predicates over posts rows
func (f PostFilter) Predicates() []Predicate {
	return []Predicate{
		Equals("author_id", f.AuthorID),
		HasTag("tags", f.Tag),
		ContainsFold(f.Subject, "subject"),
		ContainsFold(f.Text, "content", "description"),
	}
}

// Posts filters posts rows and sorts them by created_at, newest first
func Posts(records []store.Record, f PostFilter) []store.Record {
	out := Filter(records, f.Predicates()...)
	SortByTimeDesc(out, "created_at")
	return out
}
