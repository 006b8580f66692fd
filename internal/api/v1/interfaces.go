package v1

import (
	"context"

	"github.com/stacktrail/stacktrail/internal/domain"
	"github.com/stacktrail/stacktrail/internal/engine"
)

// ChangeEngine abstracts the query engine for handler testing.
// *engine.Engine satisfies this interface.
type ChangeEngine interface {
	Feed() engine.FeedView
	DailySummary() engine.SummaryView
	Velocity() engine.VelocityView
	MostChanged() engine.RankingView
	LoadTimeline(ctx context.Context, resourceType, resourceID string) (domain.ResourceTimeline, error)
	SetFilter(f domain.FeedFilter)
	SetSort(key string, descending bool) error
	SetWindow(hours int) error
	SetScope(scopeDomain string)
	SetSummaryDays(days int) error
	SetRankingLimit(limit int) error
	Refresh()
}
