package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmitCheckInput is a worker's check submission. WorkerIdentity comes from
// the authenticated request context, never from the body.
type SubmitCheckInput struct {
	TaskID         string     `json:"task_id"`
	WorkerIdentity string     `json:"-"`
	Status         string     `json:"status"`
	LatencyMs      *int64     `json:"latency_ms"`
	Timestamp      *time.Time `json:"timestamp"`
	OriginProof    string     `json:"origin_proof"`
}

// IngestionService validates and records check results
type IngestionService struct {
	results   CheckResultStore
	workers   WorkerRegistry
	notifier  CompletionNotifier
	publisher CheckEventPublisher
	metrics   *metrics.Recorder
	clock     func() time.Time
}

// NewIngestionService creates a new check ingestion service. publisher and m
// may be nil.
func NewIngestionService(
	results CheckResultStore,
	workers WorkerRegistry,
	notifier CompletionNotifier,
	publisher CheckEventPublisher,
	m *metrics.Recorder,
) *IngestionService {
	return &IngestionService{
		results:   results,
		workers:   workers,
		notifier:  notifier,
		publisher: publisher,
		metrics:   m,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the input, persists a check result and then requests
// completion of the matching lease. The completion outcome never affects the
// returned result.
func (s *IngestionService) Submit(ctx context.Context, input SubmitCheckInput) (*model.CheckResult, error) {
	taskID, err := validateSubmission(&input)
	if err != nil {
		return nil, err
	}

	worker, err := s.workers.GetByIdentity(ctx, input.WorkerIdentity)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownWorker
		}
		return nil, fmt.Errorf("failed to resolve worker: %w", err)
	}

	result := &model.CheckResult{
		TaskID:      taskID,
		WorkerID:    worker.ID,
		Status:      input.Status,
		LatencyMs:   *input.LatencyMs,
		Timestamp:   input.Timestamp.UTC(),
		OriginProof: input.OriginProof,
		CreatedAt:   s.clock(),
	}

	if err := s.results.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store check result: %w", err)
	}
	s.metrics.CheckIngested(result.Status)

	slog.Info("Check result recorded",
		"check_id", result.ID.Hex(),
		"task_id", taskID.Hex(),
		"worker_id", worker.ID.Hex(),
		"status", result.Status,
	)

	s.notifier.Notify(ctx, taskID, worker.ID)
	s.publishRecorded(ctx, result)

	return result, nil
}

// ListByTask returns a page of a task's check history, newest first
func (s *IngestionService) ListByTask(ctx context.Context, taskID string, page, limit int) ([]model.CheckResult, int64, error) {
	id, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, 0, invalid("task_id", "must be a valid id")
	}
	return s.results.ListByTask(ctx, id, page, limit)
}

func (s *IngestionService) publishRecorded(ctx context.Context, result *model.CheckResult) {
	if s.publisher == nil {
		return
	}

	event := model.CheckRecordedEvent{
		CheckID:   result.ID.Hex(),
		TaskID:    result.TaskID.Hex(),
		WorkerID:  result.WorkerID.Hex(),
		Status:    result.Status,
		LatencyMs: result.LatencyMs,
		Timestamp: result.Timestamp,
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.publisher.PublishCheckRecorded(ctx, event); err != nil {
		slog.Warn("Failed to publish check result", "check_id", event.CheckID, "error", err)
	}
}

func validateSubmission(input *SubmitCheckInput) (primitive.ObjectID, error) {
	if strings.TrimSpace(input.TaskID) == "" {
		return primitive.NilObjectID, invalid("task_id", "is required")
	}
	taskID, err := primitive.ObjectIDFromHex(input.TaskID)
	if err != nil {
		return primitive.NilObjectID, invalid("task_id", "must be a valid id")
	}
	if strings.TrimSpace(input.WorkerIdentity) == "" {
		return primitive.NilObjectID, invalid("worker_identity", "is required")
	}
	if input.Status == "" {
		return primitive.NilObjectID, invalid("status", "is required")
	}
	if !model.IsValidCheckStatus(input.Status) {
		return primitive.NilObjectID, invalid("status", "must be one of: up, down")
	}
	if input.LatencyMs == nil {
		return primitive.NilObjectID, invalid("latency_ms", "is required")
	}
	if *input.LatencyMs <= 0 {
		return primitive.NilObjectID, invalid("latency_ms", "must be positive")
	}
	if input.Timestamp == nil || input.Timestamp.IsZero() {
		return primitive.NilObjectID, invalid("timestamp", "is required")
	}
	if strings.TrimSpace(input.OriginProof) == "" {
		return primitive.NilObjectID, invalid("origin_proof", "is required")
	}
	return taskID, nil
}
