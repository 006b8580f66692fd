package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacktrail/stacktrail/internal/engine"
)

type GetDailySummaryOutput struct {
	Body engine.SummaryView
}

type GetVelocityOutput struct {
	Body engine.VelocityView
}

type GetMostChangedOutput struct {
	Body engine.RankingView
}

func RegisterAggregateRoutes(api huma.API, eng ChangeEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-daily-summary",
		Method:      http.MethodGet,
		Path:        "/summary/daily",
		Summary:     "Get per-day, per-type change counts",
		Tags:        []string{"Aggregates"},
	}, func(_ context.Context, _ *struct{}) (*GetDailySummaryOutput, error) {
		return &GetDailySummaryOutput{Body: eng.DailySummary()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-change-velocity",
		Method:      http.MethodGet,
		Path:        "/velocity",
		Summary:     "Get per-type change velocity statistics",
		Tags:        []string{"Aggregates"},
	}, func(_ context.Context, _ *struct{}) (*GetVelocityOutput, error) {
		return &GetVelocityOutput{Body: eng.Velocity()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-most-changed",
		Method:      http.MethodGet,
		Path:        "/most-changed",
		Summary:     "Get the most frequently changed resources",
		Tags:        []string{"Aggregates"},
	}, func(_ context.Context, _ *struct{}) (*GetMostChangedOutput, error) {
		return &GetMostChangedOutput{Body: eng.MostChanged()}, nil
	})
}
