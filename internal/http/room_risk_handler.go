package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/repository"
	"hotelguard-ingest/internal/store"

	"go.uber.org/zap"
)

const roomRiskCacheTTL = 15 * time.Second

// RoomRiskHandler serves the current aggregated risk score for a room, with a
// short KV cache in front of the database.
type RoomRiskHandler struct {
	repo   repository.CVRepo
	cache  store.KV
	cfg    config.CVConfig
	logger *zap.Logger
}

func NewRoomRiskHandler(repo repository.CVRepo, cache store.KV, cfg config.CVConfig, logger *zap.Logger) *RoomRiskHandler {
	return &RoomRiskHandler{repo: repo, cache: cache, cfg: cfg, logger: logger}
}

type roomRiskRequest struct {
	RoomID string `json:"room_id"`
}

type roomRiskResponse struct {
	RoomID    string  `json:"room_id"`
	RiskScore float64 `json:"risk_score"`
	HighRisk  bool    `json:"high_risk"`
	Threshold float64 `json:"threshold"`
}

// RoomRisk handles POST /cv/room-risk. A room with no computed score yet
// reads as zero risk rather than an error.
func (h *RoomRiskHandler) RoomRisk(w http.ResponseWriter, r *http.Request) {
	if !apiKeyOK(r, h.cfg.APIKey) {
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	var req roomRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "missing room_id")
		return
	}

	ctx := r.Context()
	cacheKey := fmt.Sprintf("hotelguard:roomrisk:%s", req.RoomID)

	if cached, err := h.cache.Get(ctx, cacheKey); err == nil {
		var resp roomRiskResponse
		if err := json.Unmarshal([]byte(cached), &resp); err == nil {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	score := 0.0
	risk, err := h.repo.GetRoomRisk(ctx, req.RoomID)
	switch {
	case err == nil:
		score = risk.Score
	case errors.Is(err, repository.ErrNotFound):
		// no score computed yet
	default:
		h.logger.Error("room risk lookup failed", zap.String("room_id", req.RoomID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "risk lookup failed")
		return
	}

	resp := roomRiskResponse{
		RoomID:    req.RoomID,
		RiskScore: score,
		HighRisk:  score >= h.cfg.RiskThreshold,
		Threshold: h.cfg.RiskThreshold,
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := h.cache.Set(ctx, cacheKey, string(data), roomRiskCacheTTL); err != nil {
			h.logger.Warn("room risk cache write failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
