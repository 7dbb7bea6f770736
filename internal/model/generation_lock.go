package model

import (
	"time"
)

// GenerationLockKey names the lease that serializes generation cycles
const GenerationLockKey = "assignment-generation"

// GenerationLock marks a generation cycle in progress. A holder that crashes
// loses the lock once ExpiresAt passes.
type GenerationLock struct {
	Key       string    `json:"key" bson:"_id"`
	LockedBy  string    `json:"locked_by" bson:"locked_by"`   // Cycle token of the holder
	PodID     string    `json:"pod_id" bson:"pod_id"`         // Pod identifier (hostname)
	LockedAt  time.Time `json:"locked_at" bson:"locked_at"`   // Lock acquisition timestamp
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"` // Lock expiration (TTL)
}
