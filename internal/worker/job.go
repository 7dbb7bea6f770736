package worker

import "go.mongodb.org/mongo-driver/bson/primitive"

// Job is one lease completion request queued by check ingestion
type Job struct {
	TaskID        primitive.ObjectID
	WorkerID      primitive.ObjectID
	CorrelationID string
}
