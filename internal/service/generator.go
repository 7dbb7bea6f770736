package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeneratorConfig tunes the generator. Zero values fall back to the model
// defaults; Clock and Rand default to wall time and a time-seeded source.
type GeneratorConfig struct {
	LeaseDuration  time.Duration
	CooldownWindow time.Duration
	MaxPerWorker   int

	Clock func() time.Time
	Rand  *rand.Rand

	Publisher LeaseEventPublisher // optional
	Metrics   *metrics.Recorder   // optional
}

// Generator hands out leases: each cycle it purges stale leases, shuffles the
// task catalog and deals tasks to eligible workers up to a per-worker quota,
// skipping pairs still inside the cooldown window.
//
// Steps run as separate store operations. Two overlapping cycles can lease
// the same pair twice; the scheduler's generation lock keeps that from
// happening in practice.
type Generator struct {
	tasks       TaskCatalog
	workers     WorkerRegistry
	assignments AssignmentStore

	leaseDuration  time.Duration
	cooldownWindow time.Duration
	maxPerWorker   int

	clock     func() time.Time
	publisher LeaseEventPublisher
	metrics   *metrics.Recorder

	randMu sync.Mutex // *rand.Rand is not safe for concurrent use
	rand   *rand.Rand
}

// NewGenerator creates a new assignment generator
func NewGenerator(tasks TaskCatalog, workers WorkerRegistry, assignments AssignmentStore, cfg GeneratorConfig) *Generator {
	g := &Generator{
		tasks:          tasks,
		workers:        workers,
		assignments:    assignments,
		leaseDuration:  cfg.LeaseDuration,
		cooldownWindow: cfg.CooldownWindow,
		maxPerWorker:   cfg.MaxPerWorker,
		clock:          cfg.Clock,
		rand:           cfg.Rand,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
	}

	if g.leaseDuration <= 0 {
		g.leaseDuration = model.DefaultLeaseDuration
	}
	if g.cooldownWindow <= 0 {
		g.cooldownWindow = model.DefaultCooldownWindow
	}
	if g.maxPerWorker <= 0 {
		g.maxPerWorker = model.DefaultMaxPerWorker
	}
	if g.clock == nil {
		g.clock = func() time.Time { return time.Now().UTC() }
	}
	if g.rand == nil {
		g.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}

	return g
}

// Run executes one generation cycle.
// Empty registries yield an unsuccessful result with a nil error; store
// failures yield a ReasonStoreError result together with the error.
func (g *Generator) Run(ctx context.Context) (model.GenerationResult, error) {
	now := g.clock()
	cycleID := uuid.New().String()
	logger := slog.With("cycle_id", cycleID)

	result, err := g.run(ctx, now, cycleID, logger)
	result.CycleID = cycleID

	duration := g.clock().Sub(now)
	switch {
	case err != nil:
		g.metrics.CycleCompleted(metrics.OutcomeError, duration)
		logger.Error("Assignment generation failed", "error", err)
	case result.Success:
		g.metrics.CycleCompleted(metrics.OutcomeSuccess, duration)
		logger.Info("Assignment generation completed",
			"assignments_created", result.AssignmentsCreated,
			"workers_involved", result.WorkersInvolved,
			"duration_ms", duration.Milliseconds(),
		)
	default:
		g.metrics.CycleCompleted(outcomeFor(result.Reason), duration)
		logger.Info("Assignment generation skipped", "reason", result.Reason)
	}

	return result, err
}

func (g *Generator) run(ctx context.Context, now time.Time, cycleID string, logger *slog.Logger) (model.GenerationResult, error) {
	// Purge must precede the loads so freshly expired leases never count
	// toward cooldown decisions.
	purged, err := g.assignments.PurgeExpired(ctx, now)
	if err != nil {
		return model.FailedGeneration(model.ReasonStoreError), fmt.Errorf("purge expired assignments: %w", err)
	}
	if purged > 0 {
		g.metrics.LeasesPurged(purged)
		logger.Info("Purged expired assignments", "count", purged)
	}

	tasks, err := g.tasks.ListAll(ctx)
	if err != nil {
		return model.FailedGeneration(model.ReasonStoreError), fmt.Errorf("load tasks: %w", err)
	}

	workers, err := g.workers.ListEligible(ctx)
	if err != nil {
		return model.FailedGeneration(model.ReasonStoreError), fmt.Errorf("load workers: %w", err)
	}

	if len(workers) == 0 {
		return model.FailedGeneration(model.ReasonNoWorkers), nil
	}
	if len(tasks) == 0 {
		return model.FailedGeneration(model.ReasonNoTasks), nil
	}

	recent, err := g.assignments.RecentPairs(ctx, now.Add(-g.cooldownWindow))
	if err != nil {
		return model.FailedGeneration(model.ReasonStoreError), fmt.Errorf("load recent assignments: %w", err)
	}

	quota := Quota(len(tasks), len(workers), g.maxPerWorker)
	pending := planAssignments(g.shuffle(tasks), workers, quota, recent, now, g.leaseDuration)

	logger.Debug("Planned assignments",
		"tasks", len(tasks),
		"workers", len(workers),
		"quota", quota,
		"recent_pairs", len(recent),
		"pending", len(pending),
	)

	if err := g.assignments.InsertMany(ctx, pending); err != nil {
		return model.FailedGeneration(model.ReasonStoreError), fmt.Errorf("persist assignments: %w", err)
	}
	g.metrics.AssignmentsCreated(len(pending))

	g.publishOffers(ctx, cycleID, pending, logger)

	return model.GenerationResult{
		Success:            true,
		AssignmentsCreated: len(pending),
		WorkersInvolved:    len(workers),
	}, nil
}

// Quota is the per-worker target for a cycle: ceil(tasks/workers), capped at limit
func Quota(tasks, workers, limit int) int {
	if tasks <= 0 || workers <= 0 {
		return 0
	}
	q := (tasks + workers - 1) / workers
	if q > limit {
		q = limit
	}
	return q
}

// planAssignments deals shuffled tasks to workers in order. A running cursor
// walks the task list without wrapping; every candidate a worker looks at
// consumes one of its quota slots, including candidates skipped for cooldown.
func planAssignments(
	tasks []model.Task,
	workers []model.Worker,
	quota int,
	recent map[model.Pair]struct{},
	now time.Time,
	leaseDuration time.Duration,
) []model.Assignment {
	pending := make([]model.Assignment, 0, min(len(tasks), quota*len(workers)))
	cursor := 0

	for _, worker := range workers {
		for slot := 0; slot < quota && cursor < len(tasks); slot++ {
			task := tasks[cursor]
			cursor++

			if _, cooling := recent[model.Pair{TaskID: task.ID, WorkerID: worker.ID}]; cooling {
				continue
			}
			pending = append(pending, model.NewAssignment(task.ID, worker.ID, now, leaseDuration))
		}
	}

	return pending
}

func (g *Generator) shuffle(tasks []model.Task) []model.Task {
	shuffled := make([]model.Task, len(tasks))
	copy(shuffled, tasks)

	g.randMu.Lock()
	g.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	g.randMu.Unlock()

	return shuffled
}

// publishOffers sends one event per worker that received leases. Failures
// are logged; the leases are already persisted and visible through the API.
func (g *Generator) publishOffers(ctx context.Context, cycleID string, pending []model.Assignment, logger *slog.Logger) {
	if g.publisher == nil || len(pending) == 0 {
		return
	}

	var order []primitive.ObjectID
	byWorker := make(map[primitive.ObjectID][]model.OpenLease)
	for i := range pending {
		a := &pending[i]
		if _, seen := byWorker[a.WorkerID]; !seen {
			order = append(order, a.WorkerID)
		}
		byWorker[a.WorkerID] = append(byWorker[a.WorkerID], a.ToOpenLease())
	}

	for _, workerID := range order {
		event := model.LeasesOfferedEvent{
			CycleID:  cycleID,
			WorkerID: workerID.Hex(),
			Leases:   byWorker[workerID],
		}
		if err := g.publishOffer(ctx, event); err != nil {
			logger.Warn("Failed to publish lease offer",
				"worker_id", workerID.Hex(),
				"error", err,
			)
		}
	}
}

func (g *Generator) publishOffer(ctx context.Context, event model.LeasesOfferedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return g.publisher.PublishLeasesOffered(ctx, event)
}

func outcomeFor(reason string) string {
	switch reason {
	case model.ReasonNoWorkers:
		return metrics.OutcomeNoWorkers
	case model.ReasonNoTasks:
		return metrics.OutcomeNoTasks
	case model.ReasonInProgress:
		return metrics.OutcomeInProgress
	default:
		return metrics.OutcomeError
	}
}
