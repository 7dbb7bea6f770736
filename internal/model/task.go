package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task represents a monitored target that workers verify on a recurring basis.
// Tasks are owned by the catalog service; this service only reads them.
type Task struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID   primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	Name      string             `json:"name,omitempty" bson:"name,omitempty"`
	URL       string             `json:"url,omitempty" bson:"url,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
