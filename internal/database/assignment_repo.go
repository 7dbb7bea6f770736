package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AssignmentRepository handles lease persistence
type AssignmentRepository struct {
	collection *mongo.Collection
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *MongoDB) *AssignmentRepository {
	return &AssignmentRepository{
		collection: db.GetCollection(CollectionAssignments),
	}
}

// PurgeExpired deletes every unfulfilled lease whose expiry is before now.
// Returns the number of leases removed.
func (r *AssignmentRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, staleLeaseFilter(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired assignments: %w", err)
	}

	return result.DeletedCount, nil
}

// RecentPairs returns the (task, worker) pairs assigned at or after since
func (r *AssignmentRepository) RecentPairs(ctx context.Context, since time.Time) (map[model.Pair]struct{}, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"task_id": 1, "worker_id": 1})

	cursor, err := r.collection.Find(ctxTimeout, assignedSinceFilter(since), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent assignments: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	pairs := make(map[model.Pair]struct{})
	for cursor.Next(ctxTimeout) {
		var a model.Assignment
		if err := cursor.Decode(&a); err != nil {
			return nil, fmt.Errorf("failed to decode assignment: %w", err)
		}
		pairs[a.Pair()] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent assignments: %w", err)
	}

	return pairs, nil
}

// InsertMany persists a batch of new leases in a single operation
func (r *AssignmentRepository) InsertMany(ctx context.Context, assignments []model.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	docs := make([]interface{}, len(assignments))
	for i := range assignments {
		if assignments[i].ID.IsZero() {
			assignments[i].ID = primitive.NewObjectID()
		}
		docs[i] = assignments[i]
	}

	_, err := r.collection.InsertMany(ctxTimeout, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to insert assignments: %w", err)
	}

	return nil
}

// CompleteOldestOpen marks the oldest unfulfilled lease for the pair as
// completed. Returns false without error when no such lease exists.
// The update is a single FindOneAndUpdate, so concurrent callers each flip at
// most one lease and never the same one twice.
func (r *AssignmentRepository) CompleteOldestOpen(ctx context.Context, taskID, workerID primitive.ObjectID) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"completed": true},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "assigned_at", Value: 1}}).
		SetReturnDocument(options.After)

	var updated model.Assignment
	err := r.collection.FindOneAndUpdate(ctxTimeout, openPairFilter(taskID, workerID), update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to complete assignment: %w", err)
	}

	slog.Debug("Assignment completed",
		"assignment_id", updated.ID.Hex(),
		"task_id", taskID.Hex(),
		"worker_id", workerID.Hex(),
	)

	return true, nil
}

// Stats counts leases by state as of now
func (r *AssignmentRepository) Stats(ctx context.Context, now time.Time) (model.AssignmentStats, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var stats model.AssignmentStats
	counts := []struct {
		target *int64
		filter bson.M
		label  string
	}{
		{&stats.Total, bson.M{}, "total"},
		{&stats.Completed, bson.M{"completed": true}, "completed"},
		{&stats.Active, activeLeaseFilter(now), "active"},
		{&stats.Expired, staleLeaseFilter(now), "expired"},
	}

	for _, c := range counts {
		n, err := r.collection.CountDocuments(ctxTimeout, c.filter)
		if err != nil {
			return model.AssignmentStats{}, fmt.Errorf("failed to count %s assignments: %w", c.label, err)
		}
		*c.target = n
	}

	return stats, nil
}

// ListOpenByWorker retrieves the worker's leases that can still be fulfilled,
// oldest first
func (r *AssignmentRepository) ListOpenByWorker(ctx context.Context, workerID primitive.ObjectID, now time.Time) ([]model.Assignment, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "assigned_at", Value: 1}})

	cursor, err := r.collection.Find(ctxTimeout, workerOpenLeaseFilter(workerID, now), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list open assignments: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var assignments []model.Assignment
	if err := cursor.All(ctxTimeout, &assignments); err != nil {
		return nil, fmt.Errorf("failed to decode assignments: %w", err)
	}

	return assignments, nil
}
