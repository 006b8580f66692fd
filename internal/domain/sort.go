package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// SortKey names a sortable attribute of the change feed.
type SortKey string

const (
	SortByTime        SortKey = "time"
	SortByType        SortKey = "type"
	SortByResource    SortKey = "resource"
	SortByProject     SortKey = "project"
	SortByDomain      SortKey = "domain"
	SortByDescription SortKey = "description"
)

// ParseSortKey validates a user-supplied sort key.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(s); key {
	case SortByTime, SortByType, SortByResource, SortByProject, SortByDomain, SortByDescription:
		return key, nil
	default:
		return "", fmt.Errorf("domain.ParseSortKey: %q: %w", s, ErrUnknownSortKey)
	}
}

// SortSpec selects a sort key and direction for the change feed.
type SortSpec struct {
	Key        SortKey `json:"key"`
	Descending bool    `json:"descending"`
}

// DefaultSort orders the feed newest first.
func DefaultSort() SortSpec {
	return SortSpec{Key: SortByTime, Descending: true}
}

// SortRecords returns a sorted copy of records. The sort is stable: records
// comparing equal under the spec keep their relative input order, so
// re-sorting an already sorted slice leaves it unchanged. Unknown keys fall
// back to the time ordering.
func SortRecords(records []ChangeRecord, spec SortSpec) []ChangeRecord {
	out := slices.Clone(records)
	less := lessFunc(spec.Key)
	sort.SliceStable(out, func(i, j int) bool {
		if spec.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// lessFunc returns a strict-weak ordering for the key. Text keys compare
// case-insensitively so that display sorting does not split on case.
func lessFunc(key SortKey) func(a, b ChangeRecord) bool {
	switch key {
	case SortByType:
		return func(a, b ChangeRecord) bool { return foldLess(a.ResourceType, b.ResourceType) }
	case SortByResource:
		return func(a, b ChangeRecord) bool { return foldLess(a.DisplayLabel(), b.DisplayLabel()) }
	case SortByProject:
		return func(a, b ChangeRecord) bool { return foldLess(a.ProjectGroup(), b.ProjectGroup()) }
	case SortByDomain:
		return func(a, b ChangeRecord) bool { return foldLess(a.DomainGroup(), b.DomainGroup()) }
	case SortByDescription:
		return func(a, b ChangeRecord) bool { return foldLess(a.ChangeDescription, b.ChangeDescription) }
	default:
		return func(a, b ChangeRecord) bool { return a.EffectiveTime().Before(b.EffectiveTime()) }
	}
}

func foldLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
