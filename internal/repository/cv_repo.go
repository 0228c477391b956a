package repository

import (
	"context"
	"time"

	"hotelguard-ingest/internal/domain"
)

// CVRepo owns the frame observation, analysis, evidence and summary tables.
// Dedup and monotonic counting delegate to its uniqueness constraints and
// window-scoped reads; there is no in-process shared state between requests.
type CVRepo interface {
	// MaxEntryCountSince returns the highest entry counter recorded for the
	// room at or after since (0 when the window is empty). It seeds the
	// per-batch running counter so the count never resets mid-window.
	MaxEntryCountSince(ctx context.Context, roomID string, since time.Time) (int, error)
	ObservationExists(ctx context.Context, roomID string, ts time.Time) (bool, error)
	// InsertObservation returns ErrDuplicate on a (room_id, ts) collision.
	InsertObservation(ctx context.Context, obs *domain.FrameObservation) error

	UpsertFrameAnalysis(ctx context.Context, fa *domain.FrameAnalysis) error
	ListFrameAnalyses(ctx context.Context, videoID string) ([]domain.FrameAnalysis, error)

	InsertEvidence(ctx context.Context, ev *domain.RiskEvidence) error
	UpsertVideoSummary(ctx context.Context, vs *domain.VideoSummary) error

	// GetRoomRisk returns ErrNotFound when the aggregator has not scored the
	// room yet.
	GetRoomRisk(ctx context.Context, roomID string) (*domain.RoomRisk, error)
}
