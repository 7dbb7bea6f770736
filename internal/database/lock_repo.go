package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockRepository handles the distributed lease that keeps generation cycles
// from overlapping across pods and between manual and scheduled triggers
type LockRepository struct {
	collection *mongo.Collection
	podID      string
}

// NewLockRepository creates a new lock repository owned by podID
func NewLockRepository(db *MongoDB, podID string) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionGenerationLocks),
		podID:      podID,
	}
}

// AcquireLock attempts to take the lock named key for the cycle identified by
// token. Returns true if the lock was acquired, false if another cycle holds it.
// Uses FindOneAndUpdate with upsert: an unexpired lock fails the filter and the
// upsert then collides on _id.
func (r *LockRepository) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	filter := bson.M{
		"_id":        key,
		"expires_at": bson.M{"$lt": now},
	}

	update := bson.M{
		"$set": bson.M{
			"locked_by":  token,
			"pod_id":     r.podID,
			"locked_at":  now,
			"expires_at": expiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.GenerationLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if result.LockedBy != token {
		return false, nil
	}

	slog.Debug("Successfully acquired lock",
		"lock", key,
		"token", token,
		"pod_id", r.podID,
		"expires_at", expiresAt,
	)

	return true, nil
}

// ReleaseLock releases the lock, but only if token still holds it.
// A cycle that outlived its TTL cannot release a successor's lock.
func (r *LockRepository) ReleaseLock(ctx context.Context, key, token string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":       key,
		"locked_by": token,
	}

	result, err := r.collection.DeleteOne(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Successfully released lock",
			"lock", key,
			"token", token,
		)
	}

	return nil
}

// ReleaseAllLocks releases every lock taken by this pod.
// This is typically called during graceful shutdown.
func (r *LockRepository) ReleaseAllLocks(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"pod_id": r.podID})
	if err != nil {
		return fmt.Errorf("failed to release all locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Released all locks during shutdown",
			"pod_id", r.podID,
			"count", result.DeletedCount,
		)
	}

	return nil
}
