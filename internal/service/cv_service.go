package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/domain"
	"hotelguard-ingest/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CVService runs the frame-batch pipeline: per-frame analysis, dedup,
// monotonic entry counting, evidence selection, summaries and the downstream
// risk-recompute trigger. Per-item processing is independent; one item's
// failure never aborts the batch.
type CVService struct {
	repo      repository.CVRepo
	analyzer  Analyzer
	recompute RecomputeInvoker
	cfg       config.CVConfig
	logger    *zap.Logger
}

func NewCVService(repo repository.CVRepo, analyzer Analyzer, recompute RecomputeInvoker, cfg config.CVConfig, logger *zap.Logger) *CVService {
	if cfg.EvidenceMax <= 0 {
		cfg.EvidenceMax = 5
	}
	if cfg.LookbackMinutes <= 0 {
		cfg.LookbackMinutes = 60
	}
	return &CVService{repo: repo, analyzer: analyzer, recompute: recompute, cfg: cfg, logger: logger}
}

// BatchResult is the per-batch outcome. A 200 with a non-empty Errors list is
// a valid partial success; callers must inspect Errors even on HTTP 200.
type BatchResult struct {
	Accepted      int           `json:"accepted"`
	Analyzed      int           `json:"analyzed"`
	Inserted      int           `json:"inserted"`
	Rooms         []string      `json:"rooms"`
	EvidenceSaved int           `json:"evidence_saved"`
	Summary       *BatchSummary `json:"summary"`
	Errors        []string      `json:"errors"`
}

type analyzedFrame struct {
	item FrameItem
	res  AnalysisResult
}

// ProcessBatch ingests one validated frame batch.
func (s *CVService) ProcessBatch(ctx context.Context, items []FrameItem) *BatchResult {
	result := &BatchResult{Accepted: len(items), Rooms: []string{}, Errors: []string{}}

	analyzed := s.analyzeItems(ctx, items, result)
	result.Analyzed = len(analyzed)
	if len(analyzed) == 0 {
		return result
	}

	rooms := s.foldObservations(ctx, analyzed, result)
	s.saveFrameAnalyses(ctx, analyzed, result)
	s.selectEvidence(ctx, analyzed, result)
	s.updateVideoSummaries(ctx, analyzed, result)

	if !batchHasVideo(items) {
		s.summarizeLegacyBatch(ctx, analyzed, result)
	}

	if len(rooms) > 0 {
		result.Rooms = rooms
		// Best-effort: already-committed observations are never rolled back
		// on a trigger failure; the aggregator is retryable.
		if err := s.recompute.Invoke(ctx, rooms); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("risk recompute: %v", err))
		}
	}

	return result
}

func (s *CVService) analyzeItems(ctx context.Context, items []FrameItem, result *BatchResult) []analyzedFrame {
	analyzed := make([]analyzedFrame, 0, len(items))
	for i, item := range items {
		res, err := s.analyzer.AnalyzeFrame(ctx, item.Image, item.MimeType)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: analysis failed: %v", i, err))
			continue
		}
		analyzed = append(analyzed, analyzedFrame{item: item, res: *res})
	}
	return analyzed
}

// foldObservations sorts analyzed frames by (room, timestamp) and folds them
// into per-room monotonic entry counters seeded from the lookback window, so
// out-of-order arrival within one batch cannot corrupt ordering. Returns the
// rooms that received new observations.
func (s *CVService) foldObservations(ctx context.Context, analyzed []analyzedFrame, result *BatchResult) []string {
	sort.SliceStable(analyzed, func(i, j int) bool {
		if analyzed[i].item.RoomID != analyzed[j].item.RoomID {
			return analyzed[i].item.RoomID < analyzed[j].item.RoomID
		}
		return analyzed[i].item.CapturedAt.Before(analyzed[j].item.CapturedAt)
	})

	// Rolling window anchored at the latest frame in the batch.
	latest := analyzed[0].item.CapturedAt
	for _, f := range analyzed[1:] {
		if f.item.CapturedAt.After(latest) {
			latest = f.item.CapturedAt
		}
	}
	since := latest.Add(-time.Duration(s.cfg.LookbackMinutes) * time.Minute)

	counters := make(map[string]int)
	touched := make(map[string]bool)

	for _, f := range analyzed {
		roomID := f.item.RoomID
		ts := f.item.CapturedAt.UTC().Truncate(time.Second)

		running, ok := counters[roomID]
		if !ok {
			baseline, err := s.repo.MaxEntryCountSince(ctx, roomID, since)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("room %s: counter baseline: %v", roomID, err))
				continue
			}
			running = baseline
			counters[roomID] = running
		}

		exists, err := s.repo.ObservationExists(ctx, roomID, ts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("room %s: existence check: %v", roomID, err))
			continue
		}
		if exists {
			s.logger.Info("skipping duplicate observation",
				zap.String("room_id", roomID), zap.Time("ts", ts))
			continue
		}

		next := running
		if f.res.Entry {
			next++
		}
		obs := &domain.FrameObservation{
			RoomID:      roomID,
			PersonCount: f.res.PersonCount,
			EntryCount:  next,
			Timestamp:   ts,
		}
		if err := s.repo.InsertObservation(ctx, obs); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// Lost a race with a concurrent batch; the counter may
				// undercount by that batch's contribution, never double-count.
				s.logger.Info("observation raced, skipping",
					zap.String("room_id", roomID), zap.Time("ts", ts))
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("room %s: insert observation: %v", roomID, err))
			continue
		}
		counters[roomID] = next
		touched[roomID] = true
		result.Inserted++
	}

	rooms := make([]string, 0, len(touched))
	for room := range touched {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// saveFrameAnalyses upserts per-frame analyses for video-tagged frames so
// later summarization has full context, regardless of evidence selection.
func (s *CVService) saveFrameAnalyses(ctx context.Context, analyzed []analyzedFrame, result *BatchResult) {
	for _, f := range analyzed {
		if f.item.VideoID == "" {
			continue
		}
		fa := &domain.FrameAnalysis{
			VideoID:     f.item.VideoID,
			RoomID:      f.item.RoomID,
			Timestamp:   f.item.CapturedAt.UTC().Truncate(time.Second),
			PersonCount: f.res.PersonCount,
			Entry:       f.res.Entry,
			Confidence:  f.res.Confidence,
			Suspicion:   f.res.Suspicion,
			Anomalies:   f.res.Anomalies,
			Summary:     f.res.Summary,
		}
		if err := s.repo.UpsertFrameAnalysis(ctx, fa); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("video %s: frame analysis: %v", f.item.VideoID, err))
		}
	}
}

// selectEvidence stores the top-K most suspicious video-tagged frames at or
// above the threshold, bounding storage while keeping the most salient frames.
func (s *CVService) selectEvidence(ctx context.Context, analyzed []analyzedFrame, result *BatchResult) {
	var candidates []analyzedFrame
	for _, f := range analyzed {
		if f.item.VideoID != "" && f.res.Suspicion >= s.cfg.EvidenceThreshold {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return
	}

	// Rank descending by suspicion, ties broken by earliest timestamp.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].res.Suspicion != candidates[j].res.Suspicion {
			return candidates[i].res.Suspicion > candidates[j].res.Suspicion
		}
		return candidates[i].item.CapturedAt.Before(candidates[j].item.CapturedAt)
	})
	if len(candidates) > s.cfg.EvidenceMax {
		candidates = candidates[:s.cfg.EvidenceMax]
	}

	for _, f := range candidates {
		ev := &domain.RiskEvidence{
			EvidenceID: uuid.NewString(),
			VideoID:    f.item.VideoID,
			RoomID:     f.item.RoomID,
			Timestamp:  f.item.CapturedAt.UTC().Truncate(time.Second),
			Suspicion:  f.res.Suspicion,
			MimeType:   f.item.MimeType,
			Image:      f.item.Image,
		}
		if err := s.repo.InsertEvidence(ctx, ev); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("video %s: evidence: %v", f.item.VideoID, err))
			continue
		}
		result.EvidenceSaved++
	}
}

// updateVideoSummaries keeps one running summary row per video id, refreshed
// as later batches for the same video arrive.
func (s *CVService) updateVideoSummaries(ctx context.Context, analyzed []analyzedFrame, result *BatchResult) {
	peaks := make(map[string]float64)
	for _, f := range analyzed {
		if f.item.VideoID == "" {
			continue
		}
		if f.res.Suspicion > peaks[f.item.VideoID] {
			peaks[f.item.VideoID] = f.res.Suspicion
		} else if _, ok := peaks[f.item.VideoID]; !ok {
			peaks[f.item.VideoID] = f.res.Suspicion
		}
	}

	for videoID, peak := range peaks {
		level := RiskLevel(peak)
		vs := &domain.VideoSummary{
			VideoID:        videoID,
			RiskLevel:      level,
			RiskScore:      peak,
			Recommendation: recommendationFor(level),
		}
		if err := s.repo.UpsertVideoSummary(ctx, vs); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("video %s: summary: %v", videoID, err))
		}
	}
}

// summarizeLegacyBatch requests one aggregate judgment for video-less
// batches. Absence or failure is non-fatal and surfaces as a null summary.
func (s *CVService) summarizeLegacyBatch(ctx context.Context, analyzed []analyzedFrame, result *BatchResult) {
	frames := make([]AnalysisResult, len(analyzed))
	for i, f := range analyzed {
		frames[i] = f.res
	}
	summary, err := s.analyzer.SummarizeBatch(ctx, frames)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("batch summary: %v", err))
		return
	}
	result.Summary = summary
}

// FinalizeVideo aggregates all stored frame analyses for a video into its
// final summary row.
func (s *CVService) FinalizeVideo(ctx context.Context, videoID string) (*domain.VideoSummary, error) {
	analyses, err := s.repo.ListFrameAnalyses(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load frame analyses: %w", err)
	}
	if len(analyses) == 0 {
		return nil, repository.ErrNotFound
	}

	peak := 0.0
	for _, fa := range analyses {
		if fa.Suspicion > peak {
			peak = fa.Suspicion
		}
	}

	vs := &domain.VideoSummary{
		VideoID:        videoID,
		RiskLevel:      RiskLevel(peak),
		RiskScore:      peak,
		Recommendation: recommendationFor(RiskLevel(peak)),
	}

	// The analyzer's aggregate judgment is preferred; the heuristic peak
	// stands in when the call fails.
	frames := make([]AnalysisResult, len(analyses))
	for i, fa := range analyses {
		frames[i] = AnalysisResult{
			PersonCount: fa.PersonCount,
			Entry:       fa.Entry,
			Confidence:  fa.Confidence,
			Suspicion:   fa.Suspicion,
			Anomalies:   fa.Anomalies,
			Summary:     fa.Summary,
		}
	}
	if summary, err := s.analyzer.SummarizeBatch(ctx, frames); err == nil {
		vs.RiskLevel = summary.RiskLevel
		vs.RiskScore = summary.SuspicionScore
		vs.Summary = summary.Summary
		vs.Recommendation = summary.RecommendedAction
	} else {
		s.logger.Warn("video finalize summary failed, using heuristic aggregate",
			zap.String("video_id", videoID), zap.Error(err))
	}

	if err := s.repo.UpsertVideoSummary(ctx, vs); err != nil {
		return nil, fmt.Errorf("failed to upsert video summary: %w", err)
	}
	return vs, nil
}

func batchHasVideo(items []FrameItem) bool {
	for _, item := range items {
		if item.VideoID != "" {
			return true
		}
	}
	return false
}

// RiskLevel buckets a suspicion score.
func RiskLevel(score float64) string {
	switch {
	case score < 0.3:
		return "low"
	case score < 0.7:
		return "medium"
	default:
		return "high"
	}
}

func recommendationFor(level string) string {
	switch level {
	case "high":
		return "Dispatch staff to the room and review evidence frames immediately."
	case "medium":
		return "Review flagged evidence frames."
	default:
		return "No action needed."
	}
}
