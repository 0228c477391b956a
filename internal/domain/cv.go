package domain

import "time"

// FrameObservation is one timestamped room observation (cv_events row).
// EntryCount is the cumulative number of entries observed within the rolling
// lookback window for the room; it is non-decreasing across consecutive
// observations inside one active window.
type FrameObservation struct {
	ID          int64     `json:"id,omitempty"`
	RoomID      string    `json:"room_id"`
	PersonCount int       `json:"person_count"`
	EntryCount  int       `json:"entry_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// FrameAnalysis is the per-frame vision output keyed by (video, room, ts).
// Upserted, so replayed frames are idempotent.
type FrameAnalysis struct {
	VideoID     string    `json:"video_id"`
	RoomID      string    `json:"room_id"`
	Timestamp   time.Time `json:"timestamp"`
	PersonCount int       `json:"person_count"`
	Entry       bool      `json:"entry"`
	Confidence  float64   `json:"confidence"`
	Suspicion   float64   `json:"suspicion"` // [0,1]
	Anomalies   []string  `json:"anomalies,omitempty"`
	Summary     string    `json:"summary,omitempty"`
}

// RiskEvidence is a retained frame whose suspicion cleared the threshold.
// Append-only; the count per ingestion call is capped.
type RiskEvidence struct {
	EvidenceID string    `json:"evidence_id"`
	VideoID    string    `json:"video_id"`
	RoomID     string    `json:"room_id"`
	Timestamp  time.Time `json:"timestamp"`
	Suspicion  float64   `json:"suspicion"`
	MimeType   string    `json:"mime_type"`
	Image      []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// VideoSummary is one row per video id, upserted as later batches arrive.
type VideoSummary struct {
	VideoID        string    `json:"video_id"`
	RiskLevel      string    `json:"risk_level"` // "low" | "medium" | "high"
	RiskScore      float64   `json:"risk_score"`
	Recommendation string    `json:"recommendation,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RoomRisk is the current aggregated risk score for a room, written by the
// external aggregator and read by /cv/room-risk.
type RoomRisk struct {
	RoomID     string    `json:"room_id"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}
