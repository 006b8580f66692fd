package engine

import (
	"context"

	"github.com/stacktrail/stacktrail/internal/domain"
)

// Source is the slice of the change-history backend the engine consumes.
// *history.Client satisfies it.
type Source interface {
	RecentChanges(ctx context.Context, hours int, scopeDomain string) ([]domain.ChangeRecord, error)
	DailySummary(ctx context.Context, days int) ([]domain.DailyChangeCount, error)
	ChangeVelocity(ctx context.Context) ([]domain.TypeVelocity, error)
	MostChanged(ctx context.Context, limit int, scopeDomain string) ([]domain.ChangeRecord, error)
	ResourceHistory(ctx context.Context, resourceType, resourceID string) ([]domain.ChangeRecord, error)
}
