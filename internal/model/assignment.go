package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default lease parameters
const (
	DefaultLeaseDuration  = 10 * time.Minute
	DefaultCooldownWindow = 30 * time.Minute
	DefaultMaxPerWorker   = 5
)

// Assignment is a lease offering one task to one worker for one verification
// cycle. ExpiresAt is fixed at creation; Completed only ever moves to true.
type Assignment struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TaskID     primitive.ObjectID `json:"task_id" bson:"task_id"`
	WorkerID   primitive.ObjectID `json:"worker_id" bson:"worker_id"`
	AssignedAt time.Time          `json:"assigned_at" bson:"assigned_at"`
	ExpiresAt  time.Time          `json:"expires_at" bson:"expires_at"`
	Completed  bool               `json:"completed" bson:"completed"`
}

// NewAssignment creates an open lease starting at now
func NewAssignment(taskID, workerID primitive.ObjectID, now time.Time, leaseDuration time.Duration) Assignment {
	return Assignment{
		ID:         primitive.NewObjectID(),
		TaskID:     taskID,
		WorkerID:   workerID,
		AssignedAt: now,
		ExpiresAt:  now.Add(leaseDuration),
		Completed:  false,
	}
}

// IsOpen reports whether the lease can still be fulfilled at now
func (a *Assignment) IsOpen(now time.Time) bool {
	return !a.Completed && !a.ExpiresAt.Before(now)
}

// IsExpired reports whether the lease lapsed without being fulfilled.
// Expired leases are purged at the start of the next generation cycle.
func (a *Assignment) IsExpired(now time.Time) bool {
	return !a.Completed && a.ExpiresAt.Before(now)
}

// Pair returns the (task, worker) key used for cooldown checks
func (a *Assignment) Pair() Pair {
	return Pair{TaskID: a.TaskID, WorkerID: a.WorkerID}
}

// Pair identifies a task offered to a worker
type Pair struct {
	TaskID   primitive.ObjectID
	WorkerID primitive.ObjectID
}

// OpenLease is the view of an open assignment returned to workers
type OpenLease struct {
	TaskID     string    `json:"task_id"`
	AssignedAt time.Time `json:"assigned_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ToOpenLease converts an Assignment to its worker-facing view
func (a *Assignment) ToOpenLease() OpenLease {
	return OpenLease{
		TaskID:     a.TaskID.Hex(),
		AssignedAt: a.AssignedAt,
		ExpiresAt:  a.ExpiresAt,
	}
}

// AssignmentStats summarizes the assignment store for operators
type AssignmentStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Expired   int64 `json:"expired"`
}
