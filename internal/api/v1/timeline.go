package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacktrail/stacktrail/internal/domain"
	"github.com/stacktrail/stacktrail/internal/history"
)

type GetTimelineInput struct {
	ResourceType string `path:"resourceType" minLength:"1" doc:"Resource type"`
	ResourceID   string `path:"resourceID" minLength:"1" doc:"Resource ID"`
}

type TimelineBody struct {
	Timeline domain.ResourceTimeline `json:"timeline"`
	// Verified is true when every record's previousHash matches its
	// predecessor's changeHash.
	Verified bool `json:"verified"`
}

type GetTimelineOutput struct {
	Body TimelineBody
}

func RegisterTimelineRoutes(api huma.API, eng ChangeEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-resource-timeline",
		Method:      http.MethodGet,
		Path:        "/resources/{resourceType}/{resourceID}/timeline",
		Summary:     "Reconstruct and verify one resource's change timeline",
		Tags:        []string{"Timeline"},
	}, func(ctx context.Context, input *GetTimelineInput) (*GetTimelineOutput, error) {
		tl, err := eng.LoadTimeline(ctx, input.ResourceType, input.ResourceID)
		if err != nil {
			if errors.Is(err, history.ErrHistoryNotTracked) {
				return nil, huma.Error404NotFound("history tracking not enabled for this resource")
			}
			return nil, huma.Error502BadGateway("failed to fetch resource history", err)
		}

		return &GetTimelineOutput{Body: TimelineBody{
			Timeline: tl,
			Verified: tl.Verified(),
		}}, nil
	})
}
