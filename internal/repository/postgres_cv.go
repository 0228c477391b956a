package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hotelguard-ingest/internal/domain"
)

type PostgresCVRepo struct {
	db *sql.DB
}

func NewPostgresCVRepo(db *sql.DB) *PostgresCVRepo {
	return &PostgresCVRepo{db: db}
}

var _ CVRepo = (*PostgresCVRepo)(nil)

func (r *PostgresCVRepo) MaxEntryCountSince(ctx context.Context, roomID string, since time.Time) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(entry_count) FROM cv_events WHERE room_id = $1 AND ts >= $2`,
		roomID, since,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query entry counter baseline: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func (r *PostgresCVRepo) ObservationExists(ctx context.Context, roomID string, ts time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cv_events WHERE room_id = $1 AND ts = $2)`,
		roomID, ts,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check observation existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresCVRepo) InsertObservation(ctx context.Context, obs *domain.FrameObservation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cv_events (room_id, person_count, entry_count, ts)
		VALUES ($1, $2, $3, $4)`,
		obs.RoomID, obs.PersonCount, obs.EntryCount, obs.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

func (r *PostgresCVRepo) UpsertFrameAnalysis(ctx context.Context, fa *domain.FrameAnalysis) error {
	anomalies, err := json.Marshal(fa.Anomalies)
	if err != nil {
		return fmt.Errorf("failed to marshal anomalies: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cv_frame_analysis
			(video_id, room_id, ts, person_count, entry, confidence, suspicion, anomalies, summary, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (video_id, room_id, ts)
		DO UPDATE SET person_count = EXCLUDED.person_count,
		              entry = EXCLUDED.entry,
		              confidence = EXCLUDED.confidence,
		              suspicion = EXCLUDED.suspicion,
		              anomalies = EXCLUDED.anomalies,
		              summary = EXCLUDED.summary,
		              updated_at = now()`,
		fa.VideoID, fa.RoomID, fa.Timestamp, fa.PersonCount, fa.Entry,
		fa.Confidence, fa.Suspicion, anomalies, fa.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert frame analysis: %w", err)
	}
	return nil
}

func (r *PostgresCVRepo) ListFrameAnalyses(ctx context.Context, videoID string) ([]domain.FrameAnalysis, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT video_id, room_id, ts, person_count, entry, confidence, suspicion, anomalies, COALESCE(summary, '')
		FROM cv_frame_analysis
		WHERE video_id = $1
		ORDER BY ts ASC`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame analyses: %w", err)
	}
	defer rows.Close()

	var out []domain.FrameAnalysis
	for rows.Next() {
		var fa domain.FrameAnalysis
		var anomalies []byte
		if err := rows.Scan(&fa.VideoID, &fa.RoomID, &fa.Timestamp, &fa.PersonCount,
			&fa.Entry, &fa.Confidence, &fa.Suspicion, &anomalies, &fa.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan frame analysis: %w", err)
		}
		if len(anomalies) > 0 {
			_ = json.Unmarshal(anomalies, &fa.Anomalies)
		}
		out = append(out, fa)
	}
	return out, rows.Err()
}

func (r *PostgresCVRepo) InsertEvidence(ctx context.Context, ev *domain.RiskEvidence) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cv_risk_evidence
			(evidence_id, video_id, room_id, ts, suspicion, mime_type, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.EvidenceID, ev.VideoID, ev.RoomID, ev.Timestamp, ev.Suspicion, ev.MimeType, ev.Image,
	)
	if err != nil {
		return fmt.Errorf("failed to insert risk evidence: %w", err)
	}
	return nil
}

func (r *PostgresCVRepo) UpsertVideoSummary(ctx context.Context, vs *domain.VideoSummary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cv_video_summaries (video_id, risk_level, risk_score, recommendation, summary, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (video_id)
		DO UPDATE SET risk_level = EXCLUDED.risk_level,
		              risk_score = EXCLUDED.risk_score,
		              recommendation = EXCLUDED.recommendation,
		              summary = EXCLUDED.summary,
		              updated_at = now()`,
		vs.VideoID, vs.RiskLevel, vs.RiskScore, vs.Recommendation, vs.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert video summary: %w", err)
	}
	return nil
}

func (r *PostgresCVRepo) GetRoomRisk(ctx context.Context, roomID string) (*domain.RoomRisk, error) {
	var rr domain.RoomRisk
	err := r.db.QueryRowContext(ctx,
		`SELECT room_id, score, computed_at FROM room_risk_scores WHERE room_id = $1`,
		roomID,
	).Scan(&rr.RoomID, &rr.Score, &rr.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room risk: %w", err)
	}
	return &rr, nil
}
