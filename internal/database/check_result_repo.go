package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CheckResultRepository handles check result persistence.
// Results are append-only: there is no update or delete.
type CheckResultRepository struct {
	collection *mongo.Collection
}

// NewCheckResultRepository creates a new check result repository
func NewCheckResultRepository(db *MongoDB) *CheckResultRepository {
	return &CheckResultRepository{
		collection: db.GetCollection(CollectionCheckResults),
	}
}

// Create inserts a new check result
func (r *CheckResultRepository) Create(ctx context.Context, result *model.CheckResult) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if result.ID.IsZero() {
		result.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, result)
	if err != nil {
		return fmt.Errorf("failed to create check result: %w", err)
	}

	return nil
}

// ListByTask retrieves a task's check results, newest first, with pagination
func (r *CheckResultRepository) ListByTask(ctx context.Context, taskID primitive.ObjectID, page, limit int) ([]model.CheckResult, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{"task_id": taskID}

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count check results: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "timestamp", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list check results: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var results []model.CheckResult
	if err := cursor.All(ctxTimeout, &results); err != nil {
		return nil, 0, fmt.Errorf("failed to decode check results: %w", err)
	}

	return results, total, nil
}
