package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacktrail/stacktrail/internal/domain"
	"github.com/stacktrail/stacktrail/internal/engine"
)

type GetFeedOutput struct {
	Body engine.FeedView
}

type SortInput struct {
	Key        string `json:"key" minLength:"1" doc:"Sort key: time, type, resource, project, domain or description"`
	Descending bool   `json:"descending,omitempty" doc:"Sort direction"`
}

type UpdateFeedParamsInput struct {
	Body struct {
		WindowHours  *int               `json:"windowHours,omitempty" doc:"Recent-changes window in hours"`
		ScopeDomain  *string            `json:"scopeDomain,omitempty" doc:"Domain scope, empty for all domains"`
		SummaryDays  *int               `json:"summaryDays,omitempty" doc:"Daily summary window in days"`
		RankingLimit *int               `json:"rankingLimit,omitempty" doc:"Most-changed ranking size"`
		Filter       *domain.FeedFilter `json:"filter,omitempty" doc:"Feed filter, replaces the current one"`
		Sort         *SortInput         `json:"sort,omitempty" doc:"Feed sort, replaces the current one"`
	}
}

// FeedSettings echoes the feed configuration after a params update, without
// the records.
type FeedSettings struct {
	Params engine.Params     `json:"params"`
	Filter domain.FeedFilter `json:"filter"`
	Sort   domain.SortSpec   `json:"sort"`
	Total  int               `json:"total"`
}

type UpdateFeedParamsOutput struct {
	Body FeedSettings
}

func RegisterFeedRoutes(api huma.API, eng ChangeEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-feed",
		Method:      http.MethodGet,
		Path:        "/feed",
		Summary:     "Get the filtered, sorted change feed",
		Tags:        []string{"Feed"},
	}, func(_ context.Context, _ *struct{}) (*GetFeedOutput, error) {
		return &GetFeedOutput{Body: eng.Feed()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-feed-params",
		Method:      http.MethodPut,
		Path:        "/feed/params",
		Summary:     "Update feed filter, sort and fetch parameters",
		Tags:        []string{"Feed"},
	}, func(_ context.Context, input *UpdateFeedParamsInput) (*UpdateFeedParamsOutput, error) {
		if input.Body.WindowHours != nil {
			if err := eng.SetWindow(*input.Body.WindowHours); err != nil {
				return nil, huma.Error400BadRequest("invalid window hours", err)
			}
		}
		if input.Body.ScopeDomain != nil {
			eng.SetScope(*input.Body.ScopeDomain)
		}
		if input.Body.SummaryDays != nil {
			if err := eng.SetSummaryDays(*input.Body.SummaryDays); err != nil {
				return nil, huma.Error400BadRequest("invalid summary days", err)
			}
		}
		if input.Body.RankingLimit != nil {
			if err := eng.SetRankingLimit(*input.Body.RankingLimit); err != nil {
				return nil, huma.Error400BadRequest("invalid ranking limit", err)
			}
		}
		if input.Body.Filter != nil {
			eng.SetFilter(*input.Body.Filter)
		}
		if input.Body.Sort != nil {
			if err := eng.SetSort(input.Body.Sort.Key, input.Body.Sort.Descending); err != nil {
				return nil, huma.Error400BadRequest("unknown sort key", err)
			}
		}

		feed := eng.Feed()
		return &UpdateFeedParamsOutput{Body: FeedSettings{
			Params: feed.Params,
			Filter: feed.Filter,
			Sort:   feed.Sort,
			Total:  feed.Total,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "trigger-refresh",
		Method:      http.MethodPost,
		Path:        "/refresh",
		Summary:     "Schedule a refresh of all standing queries",
		Tags:        []string{"Feed"},
	}, func(_ context.Context, _ *struct{}) (*struct{}, error) {
		eng.Refresh()
		return nil, nil
	})
}
