package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/pkg/middleware"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type completions struct {
	mu    sync.Mutex
	pairs []model.Pair
	ctxOK []bool
}

func (c *completions) complete(ctx context.Context, taskID, workerID primitive.ObjectID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = append(c.pairs, model.Pair{TaskID: taskID, WorkerID: workerID})
	c.ctxOK = append(c.ctxOK, ctx.Err() == nil)
	return true, nil
}

func (c *completions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs)
}

func TestCompletionPool_RunsQueuedJobs(t *testing.T) {
	c := &completions{}
	pool := NewCompletionPool(3, 16, c.complete)
	pool.Start()

	for i := 0; i < 10; i++ {
		pool.Notify(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	}
	pool.Stop()

	require.Equal(t, 10, c.count())
}

func TestCompletionPool_OutlivesRequestContext(t *testing.T) {
	c := &completions{}
	pool := NewCompletionPool(1, 4, c.complete)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), middleware.CorrelationIDKey, "req-1"))
	pool.Notify(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	cancel()

	pool.Start()
	pool.Stop()

	require.Equal(t, []bool{true}, c.ctxOK)
}

func TestCompletionPool_SubmitAfterStop(t *testing.T) {
	pool := NewCompletionPool(1, 1, (&completions{}).complete)
	pool.Start()
	pool.Stop()

	err := pool.Submit(context.Background(), Job{})
	require.ErrorIs(t, err, ErrPoolStopped)

	require.NotPanics(t, func() {
		pool.Notify(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		pool.Stop()
	})
}

func TestCompletionPool_FullQueueHonoursContext(t *testing.T) {
	pool := NewCompletionPool(1, 1, (&completions{}).complete)

	require.NoError(t, pool.Submit(context.Background(), Job{}))
	require.Equal(t, 1, pool.QueueLength())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, pool.Submit(ctx, Job{}), context.DeadlineExceeded)

	pool.Start()
	pool.Stop()
}
