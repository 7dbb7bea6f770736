package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Worker roles
const (
	RoleWorker = "worker"
	RoleOwner  = "owner"
)

// Worker represents an entity that can receive assignments.
// PublicKey is the worker's identity as issued by the credential service and is
// opaque here.
type Worker struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PublicKey string             `json:"public_key,omitempty" bson:"public_key,omitempty"`
	Role      string             `json:"role" bson:"role"`
	Name      string             `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// IsEligible reports whether the worker may receive assignments: it needs an
// identity, and must be a dedicated worker or a task owner who registered one.
func (w *Worker) IsEligible() bool {
	if w.PublicKey == "" {
		return false
	}
	return w.Role == RoleWorker || w.Role == RoleOwner
}
