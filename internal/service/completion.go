package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dandantas/vigil/internal/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CompletionRecorder flips open leases to fulfilled
type CompletionRecorder struct {
	assignments AssignmentStore
	metrics     *metrics.Recorder
}

// NewCompletionRecorder creates a new completion recorder
func NewCompletionRecorder(assignments AssignmentStore, m *metrics.Recorder) *CompletionRecorder {
	return &CompletionRecorder{
		assignments: assignments,
		metrics:     m,
	}
}

// Complete marks the oldest open lease for (taskID, workerID) as completed.
// It reports false with a nil error when no open lease exists.
func (r *CompletionRecorder) Complete(ctx context.Context, taskID, workerID primitive.ObjectID) (bool, error) {
	completed, err := r.assignments.CompleteOldestOpen(ctx, taskID, workerID)
	r.metrics.CompletionRecorded(completed, err)
	if err != nil {
		return false, fmt.Errorf("failed to complete assignment: %w", err)
	}
	return completed, nil
}

// CompletionNotifier is the second stage of check ingestion. Implementations
// own the outcome: nothing flows back to the submitter.
type CompletionNotifier interface {
	Notify(ctx context.Context, taskID, workerID primitive.ObjectID)
}

// InlineNotifier runs completion on the caller's goroutine
type InlineNotifier struct {
	recorder *CompletionRecorder
}

// NewInlineNotifier creates a notifier that completes leases synchronously
func NewInlineNotifier(recorder *CompletionRecorder) *InlineNotifier {
	return &InlineNotifier{recorder: recorder}
}

// Notify completes the lease and logs the outcome
func (n *InlineNotifier) Notify(ctx context.Context, taskID, workerID primitive.ObjectID) {
	completed, err := n.recorder.Complete(ctx, taskID, workerID)
	LogCompletion(taskID, workerID, completed, err)
}

// LogCompletion logs the outcome of one completion attempt
func LogCompletion(taskID, workerID primitive.ObjectID, completed bool, err error) {
	attrs := []any{"task_id", taskID.Hex(), "worker_id", workerID.Hex()}

	switch {
	case err != nil:
		slog.Warn("Lease completion failed", append(attrs, "error", err)...)
	case completed:
		slog.Debug("Lease completed", attrs...)
	default:
		slog.Debug("No open lease to complete", attrs...)
	}
}
