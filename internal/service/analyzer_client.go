package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"hotelguard-ingest/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// framePromptV2 is the fixed, versioned instruction sent with every frame.
// Behavior-only, non-biometric: the model reports occupancy and movement
// signals, never identity.
const framePromptV2 = "hotelguard/frame-analysis/v2: Report room occupancy and " +
	"behavioral signals only. Count visible persons, flag whether a new entry " +
	"into the room is occurring, list behavioral anomalies (loitering, crowding, " +
	"forced entry, unattended access), and give a suspicion score in [0,1] with " +
	"a confidence in [0,1]. Do not attempt identification, demographic " +
	"inference, or any biometric analysis."

// batchPromptV1 is used for legacy per-image batches without a video id.
const batchPromptV1 = "hotelguard/batch-summary/v1: Given the per-frame " +
	"observations, produce one aggregate risk judgment for the batch: a risk " +
	"level (low/medium/high), a suspicion score in [0,1], a one-paragraph " +
	"summary and a recommended action. Behavior-only, non-biometric."

// AnalysisResult is the schema-validated output of the external vision model
// for one frame.
type AnalysisResult struct {
	PersonCount int      `json:"person_count"`
	Entry       bool     `json:"entry"`
	Confidence  float64  `json:"confidence"`
	Suspicion   float64  `json:"suspicion"`
	Anomalies   []string `json:"anomalies"`
	Summary     string   `json:"summary"`
}

// BatchSummary is the aggregate judgment for a legacy (video-less) batch.
type BatchSummary struct {
	RiskLevel         string  `json:"risk_level"`
	SuspicionScore    float64 `json:"suspicion_score"`
	Summary           string  `json:"summary"`
	RecommendedAction string  `json:"recommended_action"`
}

// Analyzer is the external vision model, treated as a black-box classifier.
type Analyzer interface {
	AnalyzeFrame(ctx context.Context, image []byte, mimeType string) (*AnalysisResult, error)
	SummarizeBatch(ctx context.Context, frames []AnalysisResult) (*BatchSummary, error)
}

// HTTPAnalyzer calls the vision-analysis service over HTTP.
type HTTPAnalyzer struct {
	client *resty.Client
	logger *zap.Logger
}

func NewHTTPAnalyzer(cfg *config.AnalyzerConfig, logger *zap.Logger) *HTTPAnalyzer {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &HTTPAnalyzer{client: client, logger: logger}
}

var _ Analyzer = (*HTTPAnalyzer)(nil)

type analyzeFrameRequest struct {
	Prompt      string `json:"prompt"`
	MimeType    string `json:"mime_type"`
	ImageBase64 string `json:"image_base64"`
}

func (a *HTTPAnalyzer) AnalyzeFrame(ctx context.Context, image []byte, mimeType string) (*AnalysisResult, error) {
	req := analyzeFrameRequest{
		Prompt:      framePromptV2,
		MimeType:    mimeType,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/analyze-frame")
	if err != nil {
		return nil, fmt.Errorf("analyzer call failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode())
	}

	var result AnalysisResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}
	if err := ValidateAnalysis(&result); err != nil {
		return nil, fmt.Errorf("analyzer response failed schema validation: %w", err)
	}
	return &result, nil
}

type summarizeBatchRequest struct {
	Prompt string           `json:"prompt"`
	Frames []AnalysisResult `json:"frames"`
}

func (a *HTTPAnalyzer) SummarizeBatch(ctx context.Context, frames []AnalysisResult) (*BatchSummary, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(summarizeBatchRequest{Prompt: batchPromptV1, Frames: frames}).
		Post("/v1/summarize-batch")
	if err != nil {
		return nil, fmt.Errorf("analyzer summary call failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("analyzer summary returned status %d", resp.StatusCode())
	}

	var summary BatchSummary
	if err := json.Unmarshal(resp.Body(), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer summary: %w", err)
	}
	if summary.SuspicionScore < 0 || summary.SuspicionScore > 1 {
		return nil, fmt.Errorf("analyzer summary suspicion_score out of range: %v", summary.SuspicionScore)
	}
	return &summary, nil
}

// Schema bounds for analyzer output. A violation is a per-item error, never a
// batch failure.
const (
	maxPersonCount  = 100
	maxAnomalies    = 16
	maxAnomalyChars = 160
	maxSummaryChars = 1000
)

func ValidateAnalysis(r *AnalysisResult) error {
	if r.PersonCount < 0 || r.PersonCount > maxPersonCount {
		return fmt.Errorf("person_count out of range: %d", r.PersonCount)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence out of range: %v", r.Confidence)
	}
	if r.Suspicion < 0 || r.Suspicion > 1 {
		return fmt.Errorf("suspicion out of range: %v", r.Suspicion)
	}
	if len(r.Anomalies) > maxAnomalies {
		return fmt.Errorf("too many anomaly signals: %d", len(r.Anomalies))
	}
	for _, a := range r.Anomalies {
		if len(a) > maxAnomalyChars {
			return fmt.Errorf("anomaly signal too long: %d chars", len(a))
		}
	}
	if len(r.Summary) > maxSummaryChars {
		return fmt.Errorf("summary too long: %d chars", len(r.Summary))
	}
	return nil
}
