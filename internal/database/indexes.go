package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates the indexes for the collections this service owns.
// The tasks and workers collections belong to other services and only get the
// indexes the read paths here depend on.
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	sets := []struct {
		collection string
		indexes    []mongo.IndexModel
	}{
		{CollectionWorkers, workerIndexes()},
		{CollectionAssignments, assignmentIndexes()},
		{CollectionCheckResults, checkResultIndexes()},
		{CollectionGenerationLocks, generationLockIndexes()},
	}

	for _, set := range sets {
		if err := createIndexes(ctx, db, set.collection, set.indexes); err != nil {
			return err
		}
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createIndexes(ctx context.Context, db *MongoDB, name string, indexes []mongo.IndexModel) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.GetCollection(name).Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return err
	}

	slog.Info("Created indexes", "collection", name, "count", len(indexes))
	return nil
}

func workerIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "public_key", Value: 1}},
			Options: options.Index().SetName("idx_public_key"),
		},
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_role_created_at"),
		},
	}
}

// Assignments deliberately carry no unique (task_id, worker_id) index:
// the same pair recurs across cycles.
func assignmentIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "task_id", Value: 1},
				{Key: "worker_id", Value: 1},
				{Key: "completed", Value: 1},
				{Key: "assigned_at", Value: 1},
			},
			Options: options.Index().SetName("idx_task_worker_completed_assigned_at"),
		},
		{
			Keys: bson.D{
				{Key: "completed", Value: 1},
				{Key: "expires_at", Value: 1},
			},
			Options: options.Index().SetName("idx_completed_expires_at"),
		},
		{
			Keys: bson.D{
				{Key: "worker_id", Value: 1},
				{Key: "completed", Value: 1},
				{Key: "expires_at", Value: 1},
			},
			Options: options.Index().SetName("idx_worker_completed_expires_at"),
		},
		{
			Keys:    bson.D{{Key: "assigned_at", Value: -1}},
			Options: options.Index().SetName("idx_assigned_at"),
		},
	}
}

func checkResultIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "task_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_task_id_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "worker_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_worker_id_timestamp"),
		},
	}
}

func generationLockIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "pod_id", Value: 1}},
			Options: options.Index().SetName("idx_pod_id"),
		},
	}
}
