package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errStoreDown = errors.New("store down")

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

type memTasks struct {
	tasks []model.Task
	err   error
}

func (m *memTasks) ListAll(context.Context) ([]model.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.Task(nil), m.tasks...), nil
}

func newTasks(n int) *memTasks {
	m := &memTasks{}
	for i := 0; i < n; i++ {
		m.tasks = append(m.tasks, model.Task{
			ID:        primitive.NewObjectID(),
			OwnerID:   primitive.NewObjectID(),
			CreatedAt: epoch,
		})
	}
	return m
}

type memWorkers struct {
	workers []model.Worker
	err     error
}

func (m *memWorkers) ListEligible(context.Context) ([]model.Worker, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Worker
	for _, w := range m.workers {
		if w.IsEligible() {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWorkers) GetByIdentity(_ context.Context, identity string) (*model.Worker, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.workers {
		if m.workers[i].PublicKey == identity {
			w := m.workers[i]
			return &w, nil
		}
	}
	return nil, database.ErrNotFound
}

func newWorkers(n int) *memWorkers {
	m := &memWorkers{}
	for i := 0; i < n; i++ {
		m.workers = append(m.workers, model.Worker{
			ID:        primitive.NewObjectID(),
			PublicKey: "key-" + primitive.NewObjectID().Hex(),
			Role:      model.RoleWorker,
			CreatedAt: epoch,
		})
	}
	return m
}

// memAssignments mirrors the filters of database.AssignmentRepository
type memAssignments struct {
	mu   sync.Mutex
	rows []model.Assignment

	purgeErr  error
	insertErr error
	completes int
	calls     []string
}

func (m *memAssignments) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "purge")
	if m.purgeErr != nil {
		return 0, m.purgeErr
	}

	kept := m.rows[:0]
	var purged int64
	for _, a := range m.rows {
		if a.IsExpired(now) {
			purged++
			continue
		}
		kept = append(kept, a)
	}
	m.rows = kept
	return purged, nil
}

func (m *memAssignments) RecentPairs(_ context.Context, since time.Time) (map[model.Pair]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "recent")

	pairs := make(map[model.Pair]struct{})
	for _, a := range m.rows {
		if !a.AssignedAt.Before(since) {
			pairs[a.Pair()] = struct{}{}
		}
	}
	return pairs, nil
}

func (m *memAssignments) InsertMany(_ context.Context, assignments []model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "insert")
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows = append(m.rows, assignments...)
	return nil
}

func (m *memAssignments) CompleteOldestOpen(_ context.Context, taskID, workerID primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldest := -1
	for i, a := range m.rows {
		if a.TaskID != taskID || a.WorkerID != workerID || a.Completed {
			continue
		}
		if oldest < 0 || a.AssignedAt.Before(m.rows[oldest].AssignedAt) {
			oldest = i
		}
	}
	if oldest < 0 {
		return false, nil
	}
	m.rows[oldest].Completed = true
	m.completes++
	return true, nil
}

func (m *memAssignments) Stats(_ context.Context, now time.Time) (model.AssignmentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats model.AssignmentStats
	for _, a := range m.rows {
		stats.Total++
		switch {
		case a.Completed:
			stats.Completed++
		case a.IsOpen(now):
			stats.Active++
		default:
			stats.Expired++
		}
	}
	return stats, nil
}

func (m *memAssignments) ListOpenByWorker(_ context.Context, workerID primitive.ObjectID, now time.Time) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Assignment
	for _, a := range m.rows {
		if a.WorkerID == workerID && a.IsOpen(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (m *memAssignments) snapshot() []model.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Assignment(nil), m.rows...)
}

func (m *memAssignments) countFor(workerID primitive.ObjectID, since time.Time) int {
	n := 0
	for _, a := range m.snapshot() {
		if a.WorkerID == workerID && !a.AssignedAt.Before(since) {
			n++
		}
	}
	return n
}

type memResults struct {
	mu   sync.Mutex
	rows []model.CheckResult
	err  error
}

func (m *memResults) Create(_ context.Context, result *model.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if result.ID.IsZero() {
		result.ID = primitive.NewObjectID()
	}
	m.rows = append(m.rows, *result)
	return nil
}

func (m *memResults) ListByTask(_ context.Context, taskID primitive.ObjectID, page, limit int) ([]model.CheckResult, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []model.CheckResult
	for _, r := range m.rows {
		if r.TaskID == taskID {
			matched = append(matched, r)
		}
	}
	total := int64(len(matched))

	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.CheckResult{}, total, nil
	}
	end := min(start+limit, len(matched))
	return matched[start:end], total, nil
}

func (m *memResults) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type recordingPublisher struct {
	mu     sync.Mutex
	offers []model.LeasesOfferedEvent
	checks []model.CheckRecordedEvent
	// budgets holds the time left before each publish's deadline, or a
	// negative value when the context had none
	budgets []time.Duration
	err     error
}

func (p *recordingPublisher) record(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		p.budgets = append(p.budgets, time.Until(deadline))
		return
	}
	p.budgets = append(p.budgets, -1)
}

func (p *recordingPublisher) PublishLeasesOffered(ctx context.Context, event model.LeasesOfferedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(ctx)
	p.offers = append(p.offers, event)
	return p.err
}

func (p *recordingPublisher) PublishCheckRecorded(ctx context.Context, event model.CheckRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(ctx)
	p.checks = append(p.checks, event)
	return p.err
}

// requireBoundedPublishes asserts every publish ran under its own deadline
func requireBoundedPublishes(t *testing.T, p *recordingPublisher) {
	t.Helper()
	require.NotEmpty(t, p.budgets)
	for _, budget := range p.budgets {
		require.Greater(t, budget, time.Duration(0))
		require.LessOrEqual(t, budget, publishTimeout)
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	pairs []model.Pair
}

func (n *recordingNotifier) Notify(_ context.Context, taskID, workerID primitive.ObjectID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pairs = append(n.pairs, model.Pair{TaskID: taskID, WorkerID: workerID})
}
