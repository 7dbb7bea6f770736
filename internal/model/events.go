package model

import "time"

// LeasesOfferedEvent tells one worker which tasks it was leased in a cycle
type LeasesOfferedEvent struct {
	CycleID  string      `json:"cycle_id"`
	WorkerID string      `json:"worker_id"`
	Leases   []OpenLease `json:"leases"`
}

// CheckRecordedEvent announces a persisted check result
type CheckRecordedEvent struct {
	CheckID   string    `json:"check_id"`
	TaskID    string    `json:"task_id"`
	WorkerID  string    `json:"worker_id"`
	Status    string    `json:"status"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
