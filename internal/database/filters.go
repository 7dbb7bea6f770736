package database

import (
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// eligibleWorkerFilter mirrors model.Worker.IsEligible
func eligibleWorkerFilter() bson.M {
	return bson.M{
		"public_key": bson.M{"$exists": true, "$nin": []interface{}{nil, ""}},
		"role":       bson.M{"$in": []string{model.RoleWorker, model.RoleOwner}},
	}
}

// staleLeaseFilter matches unfulfilled leases that expired before now
func staleLeaseFilter(now time.Time) bson.M {
	return bson.M{
		"completed":  false,
		"expires_at": bson.M{"$lt": now},
	}
}

// activeLeaseFilter matches unfulfilled leases that can still be fulfilled at now
func activeLeaseFilter(now time.Time) bson.M {
	return bson.M{
		"completed":  false,
		"expires_at": bson.M{"$gte": now},
	}
}

// workerOpenLeaseFilter narrows activeLeaseFilter to a single worker
func workerOpenLeaseFilter(workerID primitive.ObjectID, now time.Time) bson.M {
	filter := activeLeaseFilter(now)
	filter["worker_id"] = workerID
	return filter
}

// openPairFilter matches any unfulfilled lease for the pair, expired or not
func openPairFilter(taskID, workerID primitive.ObjectID) bson.M {
	return bson.M{
		"task_id":   taskID,
		"worker_id": workerID,
		"completed": false,
	}
}

// assignedSinceFilter matches leases handed out at or after since
func assignedSinceFilter(since time.Time) bson.M {
	return bson.M{
		"assigned_at": bson.M{"$gte": since},
	}
}
