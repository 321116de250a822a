package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/farmsense/server/internal/agent/bus"
	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

// Requests builds one request per kind for farm. Weather, satellite and soil
// are located by coordinates, market by crop.
func Requests(farm model.FarmConfig) []model.AgentRequest {
	reqs := make([]model.AgentRequest, 0, len(model.SourceKinds))
	for _, kind := range model.SourceKinds {
		req := model.AgentRequest{ID: uuid.NewString(), Kind: kind, FarmID: farm.ID}
		if kind == model.KindMarket {
			req.CropType = farm.CropType
		} else {
			req.Latitude = farm.Latitude
			req.Longitude = farm.Longitude
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// RequestAll publishes one request to every Source Agent. A failed publish
// does not stop the others.
func RequestAll(ctx context.Context, b bus.Bus, farm model.FarmConfig) error {
	var errs []error
	for _, req := range Requests(farm) {
		data, err := json.Marshal(req)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s request: %w", req.Kind, err))
			continue
		}
		if err := b.Publish(ctx, bus.RequestTopic(req.Kind), data); err != nil {
			errs = append(errs, fmt.Errorf("publish %s request: %w", req.Kind, err))
			continue
		}
		logx.Info().Str("kind", string(req.Kind)).Str("request_id", req.ID).Msg("sent agent request")
	}
	return errors.Join(errs...)
}
