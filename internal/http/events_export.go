package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hotelguard-ingest/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportRowCap = 10000

// EventsExportHandler produces an xlsx of normalized events for the
// operations review workflow.
type EventsExportHandler struct {
	repo   repository.CanonicalEventsRepo
	logger *zap.Logger
}

func NewEventsExportHandler(repo repository.CanonicalEventsRepo, logger *zap.Logger) *EventsExportHandler {
	return &EventsExportHandler{repo: repo, logger: logger}
}

// Export handles GET /ops/api/v1/events/export?property_id=...&since=...&limit=...
func (h *EventsExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	propertyID := r.URL.Query().Get("property_id")
	if propertyID == "" {
		writeError(w, http.StatusBadRequest, "missing property_id")
		return
	}

	since := time.Now().AddDate(0, 0, -7)
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be ISO-8601")
			return
		}
		since = parsed
	}

	limit := parseInt(r.URL.Query().Get("limit"), exportRowCap)
	if limit <= 0 || limit > exportRowCap {
		limit = exportRowCap
	}

	events, err := h.repo.ListByProperty(r.Context(), propertyID, since, limit)
	if err != nil {
		h.logger.Error("events export query failed", zap.String("property_id", propertyID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export query failed")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Events"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Occurred At", "System", "Vendor", "Event Type", "Entity Type", "Entity ID", "Room", "Data"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, hdr)
	}
	if styleID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheet, "A1", last, styleID)
	}

	for i, ev := range events {
		row := i + 2
		data := ""
		if len(ev.Data) > 0 {
			if b, err := json.Marshal(ev.Data); err == nil {
				data = string(b)
			}
		}
		values := []any{
			ev.OccurredAt.UTC().Format(time.RFC3339),
			ev.System,
			ev.Vendor,
			ev.EventType,
			ev.EntityType,
			ev.EntityID,
			ev.RoomID,
			data,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("events_%s_%s.xlsx",
		strings.ReplaceAll(propertyID, "-", ""), time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		h.logger.Error("events export write failed", zap.Error(err))
	}
}
