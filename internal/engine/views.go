package engine

import (
	"slices"

	"github.com/stacktrail/stacktrail/internal/domain"
)

// Params are the fetch parameters shared by the engine's standing queries.
// Changing any of them announces a params event and schedules a refetch.
type Params struct {
	// WindowHours bounds the recent-changes query. Must be positive.
	WindowHours int `json:"windowHours"`
	// ScopeDomain restricts backend queries to one domain. Empty means all.
	ScopeDomain string `json:"scopeDomain,omitempty"`
	// SummaryDays bounds the daily summary query. Must be positive.
	SummaryDays int `json:"summaryDays"`
	// RankingLimit caps the most-changed ranking. Zero or less means all.
	RankingLimit int `json:"rankingLimit"`
}

// DefaultParams returns the out-of-the-box fetch parameters.
func DefaultParams() Params {
	return Params{WindowHours: 24, SummaryDays: 7, RankingLimit: 10}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.WindowHours == 0 {
		p.WindowHours = def.WindowHours
	}
	if p.SummaryDays == 0 {
		p.SummaryDays = def.SummaryDays
	}
	if p.RankingLimit == 0 {
		p.RankingLimit = def.RankingLimit
	}
	return p
}

// WorkingSetSummary holds the aggregates computed locally from the filtered
// working set. It is rebuilt synchronously whenever the working set, the
// filter, or the sort changes, so it always agrees with the visible feed.
type WorkingSetSummary struct {
	Daily        []domain.DailyChangeCount `json:"daily"`
	Velocity     []domain.TypeVelocity     `json:"velocity"`
	TopResources []domain.ResourceActivity `json:"topResources"`
}

func (s WorkingSetSummary) clone() WorkingSetSummary {
	return WorkingSetSummary{
		Daily:        slices.Clone(s.Daily),
		Velocity:     slices.Clone(s.Velocity),
		TopResources: slices.Clone(s.TopResources),
	}
}

// FeedView is a consistent snapshot of the change feed: the filtered and
// sorted records, the configuration that produced them, and the local
// summary over exactly those records.
type FeedView struct {
	Records []domain.ChangeRecord `json:"records"`
	// Total is the size of the unfiltered working set.
	Total   int               `json:"total"`
	Filter  domain.FeedFilter `json:"filter"`
	Sort    domain.SortSpec   `json:"sort"`
	Params  Params            `json:"params"`
	Summary WorkingSetSummary `json:"summary"`
	Status  QueryStatus       `json:"status"`
}

// SummaryView snapshots the backend's own wide-window daily summary.
type SummaryView struct {
	Days   int                       `json:"days"`
	Rows   []domain.DailyChangeCount `json:"rows"`
	Status QueryStatus               `json:"status"`
}

// VelocityView snapshots the backend's per-type velocity statistics.
type VelocityView struct {
	Rows   []domain.TypeVelocity `json:"rows"`
	Status QueryStatus           `json:"status"`
}

// RankingView snapshots the most-changed ranking. Rows are ranked locally
// from the backend's candidate records.
type RankingView struct {
	Limit  int                       `json:"limit"`
	Rows   []domain.ResourceActivity `json:"rows"`
	Status QueryStatus               `json:"status"`
}

// TimelineView snapshots the most recently loaded resource timeline.
// Loaded is false until the first LoadTimeline resolves successfully.
type TimelineView struct {
	Loaded   bool                    `json:"loaded"`
	Timeline domain.ResourceTimeline `json:"timeline"`
	Status   QueryStatus             `json:"status"`
}

func cloneFilter(f domain.FeedFilter) domain.FeedFilter {
	f.ResourceTypes = slices.Clone(f.ResourceTypes)
	return f
}
