package model

// Reasons reported by an unsuccessful generation cycle
const (
	ReasonNoWorkers  = "no workers"
	ReasonNoTasks    = "no tasks"
	ReasonInProgress = "generation in progress"
	ReasonStoreError = "store error"
)

// GenerationResult is the outcome of one assignment generation cycle
type GenerationResult struct {
	Success            bool   `json:"success"`
	Reason             string `json:"reason,omitempty"`
	AssignmentsCreated int    `json:"assignmentsCreated"`
	WorkersInvolved    int    `json:"workersInvolved"`
	CycleID            string `json:"cycleId,omitempty"`
}

// FailedGeneration builds an unsuccessful result carrying reason
func FailedGeneration(reason string) GenerationResult {
	return GenerationResult{Success: false, Reason: reason}
}
