package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/farmsense/server/internal/agent/graph"
	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/agent/telemetry"
	errx "github.com/farmsense/server/internal/core/error"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	msgMissingMessages = `Missing "messages" in request body`
	msgInvalidBody     = "Invalid JSON body"
)

type handlers struct {
	runner    graph.Runner
	telemetry TelemetryFetcher
	store     model.TelemetryStore
	farm      model.FarmConfig
	service   string
	maxBody   int64
}

type ragQueryRequest struct {
	Messages []model.ChatMessage `json:"messages"`
	NResults *int                `json:"n_results"`
	Stream   bool                `json:"stream"`
	Crops    []string            `json:"crops"`
}

type farmDataResponse struct {
	model.TelemetrySnapshot
	Error string `json:"error,omitempty"`
}

func (h *handlers) ragQuery(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var body ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, msgMissingMessages)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if body.Messages == nil {
		writeError(w, http.StatusBadRequest, msgMissingMessages)
		return
	}

	req := model.RAGRequest{Messages: body.Messages, Crops: body.Crops}
	if body.NResults != nil {
		// An explicit count below one still searches for one passage.
		req.NResults = max(*body.NResults, 1)
	}

	if body.Stream {
		h.streamQuery(w, r, req)
		return
	}

	ans, err := h.runner.Answer(r.Context(), req)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *handlers) streamQuery(w http.ResponseWriter, r *http.Request, req model.RAGRequest) {
	sse, ok := newSSEWriter(w, h.runner.ModelName())
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sr, err := h.runner.Stream(r.Context(), req)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	// Closing the reader stops the producer and the upstream model stream.
	defer sr.Close()

	sse.start()
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logx.Error().Err(err).Msg("stream reader failed")
			_, _ = sse.event(model.ErrorEvent(err.Error()))
			return
		}
		terminal, err := sse.event(ev)
		if err != nil {
			logx.Info().Err(err).Msg("client disconnected during stream")
			return
		}
		if terminal {
			return
		}
	}
}

func (h *handlers) farmData(w http.ResponseWriter, r *http.Request) {
	crops := splitCrops(r.URL.Query().Get("crops"))
	snap, err := h.telemetry.Fetch(r.Context(), crops)
	if failed := telemetry.FailedDomains(err); failed == telemetry.Domains {
		logx.Error().Err(err).Msg("every telemetry domain failed")
		writeJSON(w, http.StatusInternalServerError, farmDataResponse{
			TelemetrySnapshot: emptySnapshot(),
			Error:             err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, farmDataResponse{TelemetrySnapshot: snap})
}

func (h *handlers) satelliteData(w http.ResponseWriter, r *http.Request) {
	row, err := h.store.LatestSatellite(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *handlers) environmentalData(w http.ResponseWriter, r *http.Request) {
	farmID := strings.TrimSpace(r.URL.Query().Get("farm_id"))
	if farmID == "" {
		farmID = h.farm.ID
	}
	row, err := h.store.LatestEnvironmental(r.Context(), farmID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": h.service})
}

// splitCrops parses a comma separated crop list, dropping blanks.
func splitCrops(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func emptySnapshot() model.TelemetrySnapshot {
	return model.TelemetrySnapshot{
		Weather:       []model.WeatherRow{},
		Market:        []model.MarketRow{},
		Environmental: []model.EnvironmentalRow{},
		Satellite:     []model.SatelliteRow{},
	}
}

// writeQueryError maps pipeline errors: caller mistakes are 400, everything
// else, model failures included, is 500.
func writeQueryError(w http.ResponseWriter, err error) {
	var appErr *errx.AppError
	if errors.As(err, &appErr) && appErr.Status == http.StatusBadRequest {
		writeError(w, http.StatusBadRequest, appErr.Message)
		return
	}
	logx.Error().Err(err).Msg("rag query failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
