package v1_test

import (
	"context"

	v1 "github.com/stacktrail/stacktrail/internal/api/v1"
	"github.com/stacktrail/stacktrail/internal/domain"
	"github.com/stacktrail/stacktrail/internal/engine"
)

var _ v1.ChangeEngine = (*mockEngine)(nil)

// ---------------------------------------------------------------------------
// Mock ChangeEngine
// ---------------------------------------------------------------------------

type mockEngine struct {
	feedFn            func() engine.FeedView
	dailyFn           func() engine.SummaryView
	velocityFn        func() engine.VelocityView
	mostChangedFn     func() engine.RankingView
	loadTimelineFn    func(ctx context.Context, resourceType, resourceID string) (domain.ResourceTimeline, error)
	setFilterFn       func(f domain.FeedFilter)
	setSortFn         func(key string, descending bool) error
	setWindowFn       func(hours int) error
	setScopeFn        func(scopeDomain string)
	setSummaryDaysFn  func(days int) error
	setRankingLimitFn func(limit int) error
	refreshFn         func()
}

func (m *mockEngine) Feed() engine.FeedView {
	return m.feedFn()
}

func (m *mockEngine) DailySummary() engine.SummaryView {
	return m.dailyFn()
}

func (m *mockEngine) Velocity() engine.VelocityView {
	return m.velocityFn()
}

func (m *mockEngine) MostChanged() engine.RankingView {
	return m.mostChangedFn()
}

func (m *mockEngine) LoadTimeline(ctx context.Context, resourceType, resourceID string) (domain.ResourceTimeline, error) {
	return m.loadTimelineFn(ctx, resourceType, resourceID)
}

func (m *mockEngine) SetFilter(f domain.FeedFilter) {
	m.setFilterFn(f)
}

func (m *mockEngine) SetSort(key string, descending bool) error {
	return m.setSortFn(key, descending)
}

func (m *mockEngine) SetWindow(hours int) error {
	return m.setWindowFn(hours)
}

func (m *mockEngine) SetScope(scopeDomain string) {
	m.setScopeFn(scopeDomain)
}

func (m *mockEngine) SetSummaryDays(days int) error {
	return m.setSummaryDaysFn(days)
}

func (m *mockEngine) SetRankingLimit(limit int) error {
	return m.setRankingLimitFn(limit)
}

func (m *mockEngine) Refresh() {
	m.refreshFn()
}
