package service

import (
	"context"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskCatalog lists monitored targets. Owned by the catalog service.
type TaskCatalog interface {
	ListAll(ctx context.Context) ([]model.Task, error)
}

// WorkerRegistry lists workers. Owned by the credential service.
type WorkerRegistry interface {
	// ListEligible returns workers satisfying model.Worker.IsEligible, in
	// registry order.
	ListEligible(ctx context.Context) ([]model.Worker, error)
	// GetByIdentity returns database.ErrNotFound for an unknown identity.
	GetByIdentity(ctx context.Context, identity string) (*model.Worker, error)
}

// AssignmentStore persists leases
type AssignmentStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	RecentPairs(ctx context.Context, since time.Time) (map[model.Pair]struct{}, error)
	InsertMany(ctx context.Context, assignments []model.Assignment) error
	CompleteOldestOpen(ctx context.Context, taskID, workerID primitive.ObjectID) (bool, error)
	Stats(ctx context.Context, now time.Time) (model.AssignmentStats, error)
	ListOpenByWorker(ctx context.Context, workerID primitive.ObjectID, now time.Time) ([]model.Assignment, error)
}

// CheckResultStore persists check results
type CheckResultStore interface {
	Create(ctx context.Context, result *model.CheckResult) error
	ListByTask(ctx context.Context, taskID primitive.ObjectID, page, limit int) ([]model.CheckResult, int64, error)
}

// publishTimeout bounds each event publish so a stalled broker cannot hold a
// check submission or the generation lease
const publishTimeout = 2 * time.Second

// LeaseEventPublisher announces leases handed out by a cycle
type LeaseEventPublisher interface {
	PublishLeasesOffered(ctx context.Context, event model.LeasesOfferedEvent) error
}

// CheckEventPublisher announces persisted check results
type CheckEventPublisher interface {
	PublishCheckRecorded(ctx context.Context, event model.CheckRecordedEvent) error
}
