package domain

import (
	"slices"
	"strings"
)

// FeedFilter is a conjunction of predicates applied to the working set. The
// zero value matches every record; each populated field narrows the result,
// so extending a filter can only shrink (never grow) what it selects.
type FeedFilter struct {
	// ResourceTypes matches records whose type equals any listed value.
	ResourceTypes []string `json:"resourceTypes,omitempty"`
	// Project matches the record's project attribution. Use UnknownGroup
	// to select records with no attribution.
	Project string `json:"project,omitempty"`
	// Domain matches the record's denormalized domain attribution.
	Domain string `json:"domain,omitempty"`
	// Search is a case-insensitive substring match against the resource
	// name, resource ID, and change description.
	Search string `json:"search,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f FeedFilter) IsZero() bool {
	return len(f.ResourceTypes) == 0 && f.Project == "" && f.Domain == "" && f.Search == ""
}

// Match reports whether rec satisfies every populated predicate.
func (f FeedFilter) Match(rec ChangeRecord) bool {
	if len(f.ResourceTypes) > 0 && !slices.Contains(f.ResourceTypes, rec.ResourceType) {
		return false
	}
	if f.Project != "" && rec.ProjectGroup() != f.Project {
		return false
	}
	if f.Domain != "" && rec.DomainGroup() != f.Domain {
		return false
	}
	if f.Search != "" && !matchesSearch(rec, f.Search) {
		return false
	}
	return true
}

func matchesSearch(rec ChangeRecord, needle string) bool {
	needle = strings.ToLower(needle)
	for _, hay := range []string{rec.ResourceName, rec.ResourceID, rec.ChangeDescription} {
		if hay != "" && strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// ApplyFilter returns the records matching f, preserving input order. The
// input slice is never modified.
func ApplyFilter(records []ChangeRecord, f FeedFilter) []ChangeRecord {
	if f.IsZero() {
		return slices.Clone(records)
	}
	out := make([]ChangeRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
