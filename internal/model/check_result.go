package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Check statuses
const (
	CheckStatusUp   = "up"
	CheckStatusDown = "down"
)

// IsValidCheckStatus reports whether status is one of the accepted values
func IsValidCheckStatus(status string) bool {
	return status == CheckStatusUp || status == CheckStatusDown
}

// CheckResult is a worker's observation of a task at a point in time.
// It is written once and never updated.
type CheckResult struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TaskID      primitive.ObjectID `json:"task_id" bson:"task_id"`
	WorkerID    primitive.ObjectID `json:"worker_id" bson:"worker_id"`
	Status      string             `json:"status" bson:"status"`
	LatencyMs   int64              `json:"latency_ms" bson:"latency_ms"`
	Timestamp   time.Time          `json:"timestamp" bson:"timestamp"`
	OriginProof string             `json:"origin_proof" bson:"origin_proof"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// CheckResultSummary represents a check result in list and submit responses
type CheckResultSummary struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	WorkerID  string `json:"worker_id"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Timestamp string `json:"timestamp"`
}

// ToSummary converts CheckResult to CheckResultSummary
func (cr *CheckResult) ToSummary() CheckResultSummary {
	var timestamp string
	if !cr.Timestamp.IsZero() {
		timestamp = cr.Timestamp.Format(time.RFC3339)
	}

	return CheckResultSummary{
		ID:        cr.ID.Hex(),
		TaskID:    cr.TaskID.Hex(),
		WorkerID:  cr.WorkerID.Hex(),
		Status:    cr.Status,
		LatencyMs: cr.LatencyMs,
		Timestamp: timestamp,
	}
}
