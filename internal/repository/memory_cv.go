package repository

import (
	"context"
	"sync"
	"time"

	"hotelguard-ingest/internal/domain"
)

type MemoryCVRepo struct {
	mu           sync.Mutex
	Observations []domain.FrameObservation
	Analyses     map[string]domain.FrameAnalysis // key video|room|ts
	Evidence     []domain.RiskEvidence
	Summaries    map[string]domain.VideoSummary
	RoomRisks    map[string]domain.RoomRisk

	obsKeys map[string]struct{} // room|ts
}

func NewMemoryCVRepo() *MemoryCVRepo {
	return &MemoryCVRepo{
		Analyses:  make(map[string]domain.FrameAnalysis),
		Summaries: make(map[string]domain.VideoSummary),
		RoomRisks: make(map[string]domain.RoomRisk),
		obsKeys:   make(map[string]struct{}),
	}
}

var _ CVRepo = (*MemoryCVRepo)(nil)

func obsKey(roomID string, ts time.Time) string {
	return roomID + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (r *MemoryCVRepo) MaxEntryCountSince(_ context.Context, roomID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, obs := range r.Observations {
		if obs.RoomID == roomID && !obs.Timestamp.Before(since) && obs.EntryCount > max {
			max = obs.EntryCount
		}
	}
	return max, nil
}

func (r *MemoryCVRepo) ObservationExists(_ context.Context, roomID string, ts time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.obsKeys[obsKey(roomID, ts)]
	return ok, nil
}

func (r *MemoryCVRepo) InsertObservation(_ context.Context, obs *domain.FrameObservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := obsKey(obs.RoomID, obs.Timestamp)
	if _, ok := r.obsKeys[key]; ok {
		return ErrDuplicate
	}
	r.obsKeys[key] = struct{}{}
	cp := *obs
	cp.ID = int64(len(r.Observations) + 1)
	r.Observations = append(r.Observations, cp)
	return nil
}

func (r *MemoryCVRepo) UpsertFrameAnalysis(_ context.Context, fa *domain.FrameAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Analyses[fa.VideoID+"|"+obsKey(fa.RoomID, fa.Timestamp)] = *fa
	return nil
}

func (r *MemoryCVRepo) ListFrameAnalyses(_ context.Context, videoID string) ([]domain.FrameAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FrameAnalysis
	for _, fa := range r.Analyses {
		if fa.VideoID == videoID {
			out = append(out, fa)
		}
	}
	return out, nil
}

func (r *MemoryCVRepo) InsertEvidence(_ context.Context, ev *domain.RiskEvidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Evidence = append(r.Evidence, *ev)
	return nil
}

func (r *MemoryCVRepo) UpsertVideoSummary(_ context.Context, vs *domain.VideoSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Summaries[vs.VideoID] = *vs
	return nil
}

func (r *MemoryCVRepo) GetRoomRisk(_ context.Context, roomID string) (*domain.RoomRisk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.RoomRisks[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rr, nil
}
