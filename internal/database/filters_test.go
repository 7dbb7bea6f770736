package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEligibleWorkerFilter(t *testing.T) {
	filter := eligibleWorkerFilter()

	require.Equal(t, bson.M{"$in": []string{"worker", "owner"}}, filter["role"])

	key, ok := filter["public_key"].(bson.M)
	require.True(t, ok)
	require.Equal(t, true, key["$exists"])
	require.ElementsMatch(t, []interface{}{nil, ""}, key["$nin"])
}

func TestLeaseFilters(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stale leases are open and expired before now", func(t *testing.T) {
		require.Equal(t, bson.M{
			"completed":  false,
			"expires_at": bson.M{"$lt": now},
		}, staleLeaseFilter(now))
	})

	t.Run("active leases are open and unexpired", func(t *testing.T) {
		require.Equal(t, bson.M{
			"completed":  false,
			"expires_at": bson.M{"$gte": now},
		}, activeLeaseFilter(now))
	})

	t.Run("worker filter does not alias the active filter", func(t *testing.T) {
		workerID := primitive.NewObjectID()

		filter := workerOpenLeaseFilter(workerID, now)

		require.Equal(t, workerID, filter["worker_id"])
		require.NotContains(t, activeLeaseFilter(now), "worker_id")
	})

	t.Run("open pair ignores expiry", func(t *testing.T) {
		taskID := primitive.NewObjectID()
		workerID := primitive.NewObjectID()

		filter := openPairFilter(taskID, workerID)

		require.Equal(t, bson.M{"task_id": taskID, "worker_id": workerID, "completed": false}, filter)
	})

	t.Run("cooldown lookback is inclusive", func(t *testing.T) {
		since := now.Add(-30 * time.Minute)
		require.Equal(t, bson.M{"assigned_at": bson.M{"$gte": since}}, assignedSinceFilter(since))
	})
}

func TestAssignmentIndexes_NoUniquePairConstraint(t *testing.T) {
	for _, idx := range assignmentIndexes() {
		if idx.Options != nil && idx.Options.Unique != nil {
			require.False(t, *idx.Options.Unique)
		}
	}
}

func TestGenerationLockIndexes_TTL(t *testing.T) {
	idx := generationLockIndexes()[0]

	require.NotNil(t, idx.Options.ExpireAfterSeconds)
	require.Equal(t, int32(0), *idx.Options.ExpireAfterSeconds)
}
