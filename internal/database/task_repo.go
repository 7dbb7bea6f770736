package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskRepository reads the task catalog
type TaskRepository struct {
	collection *mongo.Collection
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *MongoDB) *TaskRepository {
	return &TaskRepository{
		collection: db.GetCollection(CollectionTasks),
	}
}

// ListAll retrieves every task in the catalog, oldest first
func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "owner_id": 1, "name": 1, "url": 1, "created_at": 1})

	cursor, err := r.collection.Find(ctxTimeout, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var tasks []model.Task
	if err := cursor.All(ctxTimeout, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}

	return tasks, nil
}
