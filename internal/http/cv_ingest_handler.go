package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/repository"
	"hotelguard-ingest/internal/service"

	"go.uber.org/zap"
)

const maxMultipartMemory = 32 << 20

// CVIngestHandler accepts CV frame batches, in JSON or multipart form, and
// runs them through the batch pipeline.
type CVIngestHandler struct {
	svc    *service.CVService
	cfg    config.CVConfig
	logger *zap.Logger
}

func NewCVIngestHandler(svc *service.CVService, cfg config.CVConfig, logger *zap.Logger) *CVIngestHandler {
	return &CVIngestHandler{svc: svc, cfg: cfg, logger: logger}
}

// Ingest handles POST /ingest/cv-images. A 502 is returned only when every
// accepted item failed analysis; partial failures come back as 200 with the
// per-item errors listed.
func (h *CVIngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if !apiKeyOK(r, h.cfg.APIKey) {
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	var (
		items []service.FrameItem
		err   error
	)
	if isMultipart(r) {
		items, err = h.decodeMultipart(r)
	} else {
		var body []byte
		body, err = io.ReadAll(r.Body)
		if err == nil {
			items, err = service.DecodeItems(body)
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.svc.ProcessBatch(r.Context(), items)
	if result.Analyzed == 0 && result.Accepted > 0 {
		// Total analyzer failure: the upstream dependency is the problem.
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeMultipart reads one frame per uploaded file. Batch-level fields
// (room_id, captured_at, camera_id, event_id, video_id) apply to every file.
func (h *CVIngestHandler) decodeMultipart(r *http.Request) ([]service.FrameItem, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	roomID := r.FormValue("room_id")
	if roomID == "" {
		return nil, fmt.Errorf("missing room_id field")
	}
	capturedAt := r.FormValue("captured_at")
	if capturedAt == "" {
		return nil, fmt.Errorf("missing captured_at field")
	}
	base, err := time.Parse(time.RFC3339, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("captured_at must be ISO-8601 with an explicit offset: %w", err)
	}
	cameraID := r.FormValue("camera_id")
	eventID := r.FormValue("event_id")
	videoID := r.FormValue("video_id")

	var files []*multipart.FileHeader
	for _, headers := range r.MultipartForm.File {
		files = append(files, headers...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("batch contains no files")
	}

	items := make([]service.FrameItem, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		image, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		if len(image) == 0 {
			return nil, fmt.Errorf("file %d: empty image", i)
		}
		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		// Files share one second-resolution slot per the dedup key; offset
		// each file so a multi-file upload is not collapsed to one frame.
		items = append(items, service.FrameItem{
			RoomID:     roomID,
			CameraID:   cameraID,
			EventID:    eventID,
			VideoID:    videoID,
			CapturedAt: base.Add(time.Duration(i) * time.Second),
			MimeType:   mimeType,
			Image:      image,
		})
	}
	return items, nil
}

type finalizeRequest struct {
	VideoID string `json:"video_id"`
}

type finalizeResponse struct {
	VideoID           string  `json:"video_id"`
	FinalVideoSummary string  `json:"final_video_summary"`
	OverallRiskLevel  string  `json:"overall_risk_level"`
	OverallSuspicion  float64 `json:"overall_suspicion_score"`
	RecommendedAction string  `json:"recommended_action"`
}

// Finalize handles POST /ingest/cv-images/finalize: it aggregates every stored
// frame analysis for a video into its final summary.
func (h *CVIngestHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	if !apiKeyOK(r, h.cfg.APIKey) {
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
		writeError(w, http.StatusBadRequest, "missing video_id")
		return
	}

	vs, err := h.svc.FinalizeVideo(r.Context(), req.VideoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no frame analyses for video")
			return
		}
		h.logger.Error("video finalize failed", zap.String("video_id", req.VideoID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to finalize video")
		return
	}

	writeJSON(w, http.StatusOK, finalizeResponse{
		VideoID:           vs.VideoID,
		FinalVideoSummary: vs.Summary,
		OverallRiskLevel:  vs.RiskLevel,
		OverallSuspicion:  vs.RiskScore,
		RecommendedAction: vs.Recommendation,
	})
}

// Health handles GET /ingest/cv-images/health.
func (h *CVIngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !apiKeyOK(r, h.cfg.APIKey) {
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func isMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "multipart/")
}
