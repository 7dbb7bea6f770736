package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentService provides read-only views over the assignment store
type AssignmentService struct {
	assignments AssignmentStore
	workers     WorkerRegistry
	clock       func() time.Time
}

// NewAssignmentService creates a new assignment introspection service
func NewAssignmentService(assignments AssignmentStore, workers WorkerRegistry) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		workers:     workers,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Stats counts assignments by state
func (s *AssignmentService) Stats(ctx context.Context) (model.AssignmentStats, error) {
	stats, err := s.assignments.Stats(ctx, s.clock())
	if err != nil {
		return model.AssignmentStats{}, fmt.Errorf("failed to get assignment stats: %w", err)
	}
	return stats, nil
}

// OpenLeases lists the open, unexpired leases of a worker, oldest first
func (s *AssignmentService) OpenLeases(ctx context.Context, workerID string) ([]model.OpenLease, error) {
	id, err := primitive.ObjectIDFromHex(workerID)
	if err != nil {
		return nil, invalid("worker_id", "must be a valid id")
	}
	return s.openLeases(ctx, id)
}

// OpenLeasesForIdentity resolves an authenticated identity and lists its
// open leases
func (s *AssignmentService) OpenLeasesForIdentity(ctx context.Context, identity string) ([]model.OpenLease, error) {
	if identity == "" {
		return nil, invalid("worker_identity", "is required")
	}

	worker, err := s.workers.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownWorker
		}
		return nil, fmt.Errorf("failed to resolve worker: %w", err)
	}

	return s.openLeases(ctx, worker.ID)
}

func (s *AssignmentService) openLeases(ctx context.Context, workerID primitive.ObjectID) ([]model.OpenLease, error) {
	assignments, err := s.assignments.ListOpenByWorker(ctx, workerID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to list open leases: %w", err)
	}

	leases := make([]model.OpenLease, 0, len(assignments))
	for i := range assignments {
		leases = append(leases, assignments[i].ToOpenLease())
	}
	return leases, nil
}
