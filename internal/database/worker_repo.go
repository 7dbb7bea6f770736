package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WorkerRepository reads the worker registry
type WorkerRepository struct {
	collection *mongo.Collection
}

// NewWorkerRepository creates a new worker repository
func NewWorkerRepository(db *MongoDB) *WorkerRepository {
	return &WorkerRepository{
		collection: db.GetCollection(CollectionWorkers),
	}
}

// ListEligible retrieves the workers that may receive assignments, in
// registration order
func (r *WorkerRepository) ListEligible(ctx context.Context) ([]model.Worker, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctxTimeout, eligibleWorkerFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible workers: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var workers []model.Worker
	if err := cursor.All(ctxTimeout, &workers); err != nil {
		return nil, fmt.Errorf("failed to decode workers: %w", err)
	}

	return workers, nil
}

// GetByIdentity retrieves a worker by its public key
func (r *WorkerRepository) GetByIdentity(ctx context.Context, identity string) (*model.Worker, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var worker model.Worker
	err := r.collection.FindOne(ctxTimeout, bson.M{"public_key": identity}).Decode(&worker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	return &worker, nil
}
