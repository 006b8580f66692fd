package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/stacktrail/stacktrail/internal/api/v1"
	"github.com/stacktrail/stacktrail/internal/api/ws"
)

func registerAPIRoutes(api huma.API, eng v1.ChangeEngine) {
	v1.RegisterFeedRoutes(api, eng)
	v1.RegisterAggregateRoutes(api, eng)
	v1.RegisterTimelineRoutes(api, eng)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/feed", hub.ServeFeed)
}
