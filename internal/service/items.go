package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// FrameItem is one captured frame accepted for ingestion, after wire-level
// validation.
type FrameItem struct {
	RoomID     string
	CameraID   string
	EventID    string
	VideoID    string
	CapturedAt time.Time
	MimeType   string
	Image      []byte
}

// wireItem is the JSON shape produced by the CV uploader, shared by the HTTP
// and MQTT intake paths.
type wireItem struct {
	RoomID      string `json:"room_id"`
	CameraID    string `json:"camera_id"`
	EventID     string `json:"event_id"`
	VideoID     string `json:"video_id"`
	CapturedAt  string `json:"captured_at"`
	MimeType    string `json:"mime_type"`
	ImageBase64 string `json:"image_base64"`
}

// DecodeItems parses a JSON batch body: either a bare array or an object with
// an "items" array. Any malformed item rejects the whole batch with an error
// naming the offending index (fail-fast, not partial-accept).
func DecodeItems(data []byte) ([]FrameItem, error) {
	var wire []wireItem
	if err := json.Unmarshal(data, &wire); err != nil {
		var envelope struct {
			Items []wireItem `json:"items"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Items == nil {
			return nil, fmt.Errorf("body must be a JSON array or an object with an items array")
		}
		wire = envelope.Items
	}
	if len(wire) == 0 {
		return nil, fmt.Errorf("batch contains no items")
	}

	items := make([]FrameItem, 0, len(wire))
	for i, w := range wire {
		item, err := decodeItem(w)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(w wireItem) (FrameItem, error) {
	if w.RoomID == "" {
		return FrameItem{}, fmt.Errorf("missing room_id")
	}
	ts, err := parseCapturedAt(w.CapturedAt)
	if err != nil {
		return FrameItem{}, err
	}
	if w.ImageBase64 == "" {
		return FrameItem{}, fmt.Errorf("missing image_base64")
	}
	image, err := base64.StdEncoding.DecodeString(w.ImageBase64)
	if err != nil {
		return FrameItem{}, fmt.Errorf("invalid image_base64: %w", err)
	}
	if len(image) == 0 {
		return FrameItem{}, fmt.Errorf("empty image")
	}

	mime := w.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}

	return FrameItem{
		RoomID:     w.RoomID,
		CameraID:   w.CameraID,
		EventID:    w.EventID,
		VideoID:    w.VideoID,
		CapturedAt: ts,
		MimeType:   mime,
		Image:      image,
	}, nil
}

// parseCapturedAt requires an ISO-8601 timestamp with an explicit offset.
func parseCapturedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing captured_at")
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("captured_at must be ISO-8601 with an explicit offset: %w", err)
	}
	return ts, nil
}
