package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"hotelguard-ingest/internal/canonical"
	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/domain"
	"hotelguard-ingest/internal/repository"
	"hotelguard-ingest/internal/sign"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerTimestamp     = "x-hotelguard-timestamp"
	headerSignature     = "x-hotelguard-signature"
	headerVendorEventID = "x-vendor-event-id"
)

var signatureRe = regexp.MustCompile(`^v1=[0-9a-fA-F]{64}$`)

// WebhookHandler authenticates vendor callbacks and turns them into raw plus
// canonical events. Request lifecycle: received, authenticated,
// replay-checked, raw-stored (or deduped), canonicalized, committed.
type WebhookHandler struct {
	connectors repository.ConnectorsRepo
	raws       repository.RawEventsRepo
	canonicals repository.CanonicalEventsRepo
	recompute  RecomputeInvoker
	cfg        config.WebhookConfig
	logger     *zap.Logger
	now        func() time.Time
}

// RecomputeInvoker matches service.RecomputeInvoker; declared locally so the
// handler package does not depend on the service package.
type RecomputeInvoker interface {
	Invoke(ctx context.Context, roomIDs []string) error
}

func NewWebhookHandler(
	connectors repository.ConnectorsRepo,
	raws repository.RawEventsRepo,
	canonicals repository.CanonicalEventsRepo,
	recompute RecomputeInvoker,
	cfg config.WebhookConfig,
	logger *zap.Logger,
) *WebhookHandler {
	if cfg.ReplayWindowSeconds <= 0 {
		cfg.ReplayWindowSeconds = 300
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &WebhookHandler{
		connectors: connectors,
		raws:       raws,
		canonicals: canonicals,
		recompute:  recompute,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

type webhookResponse struct {
	OK              bool   `json:"ok"`
	Deduped         bool   `json:"deduped"`
	RawEventID      string `json:"raw_event_id,omitempty"`
	NormalizedCount int    `json:"normalized_count"`
}

// Receive handles POST /webhooks/{system}/{propertyId}/{vendor}.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	system, propertyID, vendor, ok := parseWebhookPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid webhook path")
		return
	}
	if !domain.ValidSystem(system) {
		writeError(w, http.StatusBadRequest, "unknown system")
		return
	}
	if _, err := uuid.Parse(propertyID); err != nil {
		writeError(w, http.StatusBadRequest, "property id must be a UUID")
		return
	}

	tsHeader := r.Header.Get(headerTimestamp)
	sigHeader := r.Header.Get(headerSignature)
	if tsHeader == "" || sigHeader == "" {
		writeError(w, http.StatusBadRequest, "missing timestamp or signature header")
		return
	}
	if !signatureRe.MatchString(sigHeader) {
		writeError(w, http.StatusBadRequest, "signature must be v1=<64 hex>")
		return
	}

	tsMillis, ok := sign.ParseTimestamp(tsHeader)
	if !ok {
		writeError(w, http.StatusBadRequest, "unparseable timestamp header")
		return
	}

	// Replay window bounds attack exposure without strict clock sync.
	skew := h.now().UnixMilli() - tsMillis
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(h.cfg.ReplayWindowSeconds)*1000 {
		writeError(w, http.StatusUnauthorized, "timestamp outside replay window")
		return
	}

	// Bound the work done on unauthenticated input before verifying.
	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		writeError(w, http.StatusBadRequest, "body exceeds maximum size")
		return
	}

	connector, err := h.connectors.FindEnabled(ctx, propertyID, system, vendor)
	if err != nil {
		if err == repository.ErrNotFound {
			writeError(w, http.StatusNotFound, "connector not found or disabled")
			return
		}
		h.logger.Error("connector lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "connector lookup failed")
		return
	}

	// The signed message is the raw, unparsed body: re-serialized forms would
	// open a canonicalization signature bypass.
	expected := sign.Sign(connector.SigningSecret, tsHeader+"."+string(body))
	supplied := strings.TrimPrefix(sigHeader, "v1=")
	if !sign.Verify(supplied, expected) {
		h.logger.Warn("webhook signature mismatch",
			zap.String("property_id", propertyID),
			zap.String("system", system),
			zap.String("vendor", vendor))
		writeError(w, http.StatusUnauthorized, "signature mismatch")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}

	vendorEventID := r.Header.Get(headerVendorEventID)
	dedupeKey := system + ":" + vendor + ":" + vendorEventID
	if vendorEventID == "" {
		dedupeKey = sign.Hash(system + ":" + vendor + ":" + tsHeader + ":" + string(body))
	}

	sanitized, err := json.Marshal(canonical.Sanitize(payload))
	if err != nil {
		h.logger.Error("failed to marshal sanitized payload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	raw := &domain.RawEvent{
		RawEventID:     uuid.NewString(),
		PropertyID:     propertyID,
		ConnectorID:    connector.ConnectorID,
		System:         system,
		Vendor:         vendor,
		OccurredAt:     time.UnixMilli(tsMillis).UTC(),
		VendorEventID:  vendorEventID,
		DedupeKey:      dedupeKey,
		SignatureValid: true,
		Payload:        sanitized,
	}

	if err := h.raws.Insert(ctx, raw); err != nil {
		if err == repository.ErrDuplicate {
			// At-least-once delivery: a collision means already processed.
			if err := h.connectors.TouchLastSeen(ctx, connector.ConnectorID); err != nil {
				h.logger.Warn("failed to touch connector on dedupe", zap.Error(err))
			}
			writeJSON(w, http.StatusOK, webhookResponse{OK: true, Deduped: true})
			return
		}
		h.logger.Error("raw event insert failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	events := canonical.Canonicalize(payload, connector.Mapping, system, vendor,
		propertyID, connector.ConnectorID, raw.OccurredAt)
	for i := range events {
		events[i].RawEventID = raw.RawEventID
	}

	count, err := h.canonicals.InsertBatch(ctx, events)
	if err != nil {
		// The raw event is preserved for replay and inspection.
		if noteErr := h.raws.AttachError(ctx, raw.RawEventID, err.Error()); noteErr != nil {
			h.logger.Error("failed to attach error note", zap.Error(noteErr))
		}
		h.logger.Error("canonical event insert failed",
			zap.String("raw_event_id", raw.RawEventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to normalize event")
		return
	}

	if err := h.connectors.TouchLastSeen(ctx, connector.ConnectorID); err != nil {
		h.logger.Warn("failed to touch connector", zap.Error(err))
	}

	if rooms := roomsOf(events); len(rooms) > 0 && h.recompute != nil {
		if err := h.recompute.Invoke(ctx, rooms); err != nil {
			h.logger.Warn("risk recompute trigger failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		OK:              true,
		RawEventID:      raw.RawEventID,
		NormalizedCount: count,
	})
}

func parseWebhookPath(path string) (system, propertyID, vendor string, ok bool) {
	rest := strings.TrimPrefix(path, "/webhooks/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func roomsOf(events []domain.CanonicalEvent) []string {
	seen := make(map[string]bool)
	var rooms []string
	for _, ev := range events {
		if ev.RoomID != "" && !seen[ev.RoomID] {
			seen[ev.RoomID] = true
			rooms = append(rooms, ev.RoomID)
		}
	}
	return rooms
}
