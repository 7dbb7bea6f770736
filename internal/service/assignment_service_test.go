package service

import (
	"context"
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAssignmentService_StatsAndLeases(t *testing.T) {
	workers := newWorkers(2)
	w0, w1 := workers.workers[0], workers.workers[1]
	clock := newFakeClock()
	now := clock.Now()

	taskA, taskB, taskC := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	done := model.NewAssignment(taskC, w0.ID, now.Add(-2*time.Minute), model.DefaultLeaseDuration)
	done.Completed = true

	store := &memAssignments{rows: []model.Assignment{
		model.NewAssignment(taskB, w0.ID, now.Add(-time.Minute), model.DefaultLeaseDuration),
		model.NewAssignment(taskA, w0.ID, now.Add(-5*time.Minute), model.DefaultLeaseDuration),
		model.NewAssignment(taskA, w1.ID, now.Add(-time.Hour), model.DefaultLeaseDuration),
		done,
	}}

	svc := NewAssignmentService(store, workers)
	svc.clock = clock.Now

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.AssignmentStats{Total: 4, Active: 2, Completed: 1, Expired: 1}, stats)

	leases, err := svc.OpenLeases(context.Background(), w0.ID.Hex())
	require.NoError(t, err)
	require.Len(t, leases, 2)
	require.Equal(t, taskA.Hex(), leases[0].TaskID, "oldest first")
	require.Equal(t, taskB.Hex(), leases[1].TaskID)
	require.Equal(t, now.Add(-5*time.Minute).Add(model.DefaultLeaseDuration), leases[0].ExpiresAt)

	leases, err = svc.OpenLeasesForIdentity(context.Background(), w1.PublicKey)
	require.NoError(t, err)
	require.Empty(t, leases, "expired leases are not offered")
	require.NotNil(t, leases)
}

func TestAssignmentService_Errors(t *testing.T) {
	svc := NewAssignmentService(&memAssignments{}, newWorkers(1))

	_, err := svc.OpenLeases(context.Background(), "xyz")
	require.True(t, IsValidationError(err))

	_, err = svc.OpenLeasesForIdentity(context.Background(), "")
	require.True(t, IsValidationError(err))

	_, err = svc.OpenLeasesForIdentity(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUnknownWorker)
}
