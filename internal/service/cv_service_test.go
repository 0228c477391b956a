package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/repository"
	"hotelguard-ingest/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAnalyzer returns scripted results keyed by the frame's image payload.
type fakeAnalyzer struct {
	results map[string]service.AnalysisResult
	errs    map[string]error

	summary    *service.BatchSummary
	summaryErr error

	summarizeCalls int
}

func (f *fakeAnalyzer) AnalyzeFrame(_ context.Context, image []byte, _ string) (*service.AnalysisResult, error) {
	key := string(image)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if res, ok := f.results[key]; ok {
		return &res, nil
	}
	return &service.AnalysisResult{PersonCount: 1, Confidence: 0.9}, nil
}

func (f *fakeAnalyzer) SummarizeBatch(_ context.Context, _ []service.AnalysisResult) (*service.BatchSummary, error) {
	f.summarizeCalls++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &service.BatchSummary{RiskLevel: "low", Summary: "quiet"}, nil
}

type fakeRecompute struct {
	calls [][]string
	err   error
}

func (f *fakeRecompute) Invoke(_ context.Context, roomIDs []string) error {
	f.calls = append(f.calls, roomIDs)
	return f.err
}

func newCVService(repo repository.CVRepo, analyzer service.Analyzer, rc service.RecomputeInvoker) *service.CVService {
	cfg := config.CVConfig{
		EvidenceThreshold: 0.15,
		EvidenceMax:       5,
		LookbackMinutes:   60,
	}
	return service.NewCVService(repo, analyzer, rc, cfg, zap.NewNop())
}

func frameAt(room, video string, ts time.Time, payload string) service.FrameItem {
	return service.FrameItem{
		RoomID:     room,
		VideoID:    video,
		CapturedAt: ts,
		MimeType:   "image/jpeg",
		Image:      []byte(payload),
	}
}

func TestProcessBatch_MonotonicCounterAcrossBatches(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{results: map[string]service.AnalysisResult{
		"f1": {PersonCount: 1, Entry: true, Confidence: 0.9},
		"f2": {PersonCount: 2, Entry: true, Confidence: 0.9},
		"f3": {PersonCount: 2, Entry: true, Confidence: 0.9},
	}}
	rc := &fakeRecompute{}
	svc := newCVService(repo, analyzer, rc)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// First call: two entry-flagged frames at 10:00 and 10:05.
	res := svc.ProcessBatch(context.Background(), []service.FrameItem{
		frameAt("101", "", base, "f1"),
		frameAt("101", "", base.Add(5*time.Minute), "f2"),
	})
	require.Empty(t, res.Errors)
	require.Equal(t, 2, res.Inserted)

	// Second, separate call: one more entry at 10:10. The counter continues
	// from the in-window baseline, it does not reset.
	res = svc.ProcessBatch(context.Background(), []service.FrameItem{
		frameAt("101", "", base.Add(10*time.Minute), "f3"),
	})
	require.Empty(t, res.Errors)
	require.Equal(t, 1, res.Inserted)

	require.Len(t, repo.Observations, 3)
	counts := []int{}
	for _, obs := range repo.Observations {
		counts = append(counts, obs.EntryCount)
	}
	require.Equal(t, []int{1, 2, 3}, counts)
}

func TestProcessBatch_OutOfOrderWithinBatch(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{results: map[string]service.AnalysisResult{
		"early": {Entry: true, PersonCount: 1},
		"late":  {Entry: true, PersonCount: 1},
	}}
	svc := newCVService(repo, analyzer, &fakeRecompute{})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Later frame listed first: the fold sorts by (room, timestamp) before
	// counting, so stored counters stay chronological.
	res := svc.ProcessBatch(context.Background(), []service.FrameItem{
		frameAt("204", "", base.Add(2*time.Minute), "late"),
		frameAt("204", "", base, "early"),
	})
	require.Empty(t, res.Errors)

	require.Len(t, repo.Observations, 2)
	require.True(t, repo.Observations[0].Timestamp.Before(repo.Observations[1].Timestamp))
	require.Equal(t, 1, repo.Observations[0].EntryCount)
	require.Equal(t, 2, repo.Observations[1].EntryCount)
}

func TestProcessBatch_DuplicateObservationSkipped(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{results: map[string]service.AnalysisResult{
		"f1": {Entry: true, PersonCount: 1},
	}}
	svc := newCVService(repo, analyzer, &fakeRecompute{})

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	item := frameAt("101", "", ts, "f1")

	res := svc.ProcessBatch(context.Background(), []service.FrameItem{item})
	require.Equal(t, 1, res.Inserted)

	// Replay of the same (room, timestamp) is an idempotent no-op, not an
	// error.
	res = svc.ProcessBatch(context.Background(), []service.FrameItem{item})
	require.Equal(t, 0, res.Inserted)
	require.Empty(t, res.Errors)
	require.Len(t, repo.Observations, 1)
	require.Equal(t, 1, repo.Observations[0].EntryCount)
}

func TestProcessBatch_EvidenceCapAndRanking(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{results: map[string]service.AnalysisResult{}}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var items []service.FrameItem
	suspicions := []float64{0.9, 0.2, 0.8, 0.5, 0.7, 0.6, 0.05, 0.5}
	for i, s := range suspicions {
		key := fmt.Sprintf("f%d", i)
		analyzer.results[key] = service.AnalysisResult{PersonCount: 1, Suspicion: s, Confidence: 0.9}
		items = append(items, frameAt("101", "vid-1", base.Add(time.Duration(i)*time.Minute), key))
	}

	svc := newCVService(repo, analyzer, &fakeRecompute{})
	res := svc.ProcessBatch(context.Background(), items)
	require.Empty(t, res.Errors)

	// 7 frames clear the 0.15 threshold; exactly cap=5 are stored, the top
	// scores, with the 0.5 tie broken by the earlier timestamp.
	require.Equal(t, 5, res.EvidenceSaved)
	require.Len(t, repo.Evidence, 5)

	gotScores := []float64{}
	for _, ev := range repo.Evidence {
		gotScores = append(gotScores, ev.Suspicion)
	}
	require.Equal(t, []float64{0.9, 0.8, 0.7, 0.6, 0.5}, gotScores)
	require.Equal(t, base.Add(3*time.Minute), repo.Evidence[4].Timestamp)
}

func TestProcessBatch_PartialAnalysisFailure(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{
		results: map[string]service.AnalysisResult{"ok": {PersonCount: 1, Entry: true}},
		errs:    map[string]error{"bad": fmt.Errorf("schema validation failed")},
	}
	svc := newCVService(repo, analyzer, &fakeRecompute{})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := svc.ProcessBatch(context.Background(), []service.FrameItem{
		frameAt("101", "", base, "bad"),
		frameAt("101", "", base.Add(time.Minute), "ok"),
	})

	require.Equal(t, 2, res.Accepted)
	require.Equal(t, 1, res.Analyzed)
	require.Equal(t, 1, res.Inserted)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "item 0")
}

func TestProcessBatch_LegacySummaryOnlyWithoutVideo(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	analyzer := &fakeAnalyzer{summary: &service.BatchSummary{RiskLevel: "medium", SuspicionScore: 0.4}}
	svc := newCVService(repo, analyzer, &fakeRecompute{})

	res := svc.ProcessBatch(context.Background(), []service.FrameItem{frameAt("101", "", base, "f")})
	require.NotNil(t, res.Summary)
	require.Equal(t, "medium", res.Summary.RiskLevel)

	// Video-tracked batches skip the legacy batch summary.
	analyzer2 := &fakeAnalyzer{}
	svc = newCVService(repo, analyzer2, &fakeRecompute{})
	res = svc.ProcessBatch(context.Background(), []service.FrameItem{frameAt("101", "vid-9", base.Add(time.Hour), "f")})
	require.Nil(t, res.Summary)
	require.Zero(t, analyzer2.summarizeCalls)
}

func TestProcessBatch_SummaryFailureNonFatal(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{summaryErr: fmt.Errorf("analyzer outage")}
	svc := newCVService(repo, analyzer, &fakeRecompute{})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := svc.ProcessBatch(context.Background(), []service.FrameItem{frameAt("101", "", base, "f")})

	require.Nil(t, res.Summary)
	require.Equal(t, 1, res.Inserted)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "batch summary")
}

func TestProcessBatch_RecomputeFailureSurfacedNotFatal(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{results: map[string]service.AnalysisResult{"f": {Entry: true, PersonCount: 1}}}
	rc := &fakeRecompute{err: fmt.Errorf("aggregator unreachable")}
	svc := newCVService(repo, analyzer, rc)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := svc.ProcessBatch(context.Background(), []service.FrameItem{frameAt("101", "vid-1", base, "f")})

	require.Equal(t, 1, res.Inserted)
	require.Equal(t, []string{"101"}, res.Rooms)
	require.Len(t, rc.calls, 1)

	found := false
	for _, e := range res.Errors {
		if len(e) >= 14 && e[:14] == "risk recompute" {
			found = true
		}
	}
	require.True(t, found, "recompute failure must surface in errors: %v", res.Errors)
}

func TestFinalizeVideo(t *testing.T) {
	repo := repository.NewMemoryCVRepo()
	analyzer := &fakeAnalyzer{results: map[string]service.AnalysisResult{
		"f1": {PersonCount: 1, Suspicion: 0.8, Entry: true},
	}, summary: &service.BatchSummary{
		RiskLevel:         "high",
		SuspicionScore:    0.85,
		Summary:           "repeated entries with forced-door signal",
		RecommendedAction: "send security",
	}}
	svc := newCVService(repo, analyzer, &fakeRecompute{})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.ProcessBatch(context.Background(), []service.FrameItem{frameAt("101", "vid-1", base, "f1")})

	vs, err := svc.FinalizeVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	require.Equal(t, "high", vs.RiskLevel)
	require.Equal(t, 0.85, vs.RiskScore)
	require.Equal(t, "send security", vs.Recommendation)

	stored, ok := repo.Summaries["vid-1"]
	require.True(t, ok)
	require.Equal(t, "high", stored.RiskLevel)

	_, err = svc.FinalizeVideo(context.Background(), "vid-unknown")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
