// Package embeddings maintains the vector store behind semantic search. A
// generator consumes an in-memory work queue of entity references, computes
// vectors with the active model, and stores them alongside the entity's
// filterable attributes. A periodic sweep re-enqueues entities whose stored
// vector is missing or was produced by a retired model.
package embeddings

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	"github.com/caseflow/navsearch/internal/metrics"
)

// EntitySource is the read-only view of the entity store the generator
// consumes: designated text fields, mirrored attributes, and a
// changed-since marker for the sweep.
type EntitySource interface {
	EmbedText(ctx context.Context, ref domain.EntityRef) (string, error)
	Attributes(ctx context.Context, ref domain.EntityRef, filterableFields []string) (map[string]string, time.Time, error)
	ChangedSince(ctx context.Context, entityTypes []string, since time.Time) ([]domain.EntityRef, error)
}

// VectorStore persists embedding records.
type VectorStore interface {
	Upsert(ctx context.Context, rec domain.EmbeddingRecord, attrs map[string]string, updatedAt time.Time) error
	ModelID(ctx context.Context, ref domain.EntityRef) (string, bool, error)
}

// TargetCatalog supplies the filterable fields mirrored into each record.
type TargetCatalog interface {
	Describe(entityType string) (domain.NavigationTarget, error)
}

// Generator runs the background embedding pipeline.
type Generator struct {
	source   EntitySource
	store    VectorStore
	targets  TargetCatalog
	embedder domain.Embedder
	modelID  string

	queue      chan domain.EntityRef
	pool       *ants.Pool
	sweepEvery time.Duration
	sweepTypes []string

	logger *zap.Logger
	now    func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a generator. workers bounds concurrent model calls; queueSize
// bounds the pending backlog, beyond which enqueues are dropped and left to
// the sweep. sweepTypes lists the entity types the sweep scans.
func New(
	source EntitySource, store VectorStore, targets TargetCatalog,
	embedder domain.Embedder, modelID string,
	workers, queueSize int, sweepEvery time.Duration, sweepTypes []string,
	logger *zap.Logger,
) (*Generator, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Generator{
		source:     source,
		store:      store,
		targets:    targets,
		embedder:   embedder,
		modelID:    modelID,
		queue:      make(chan domain.EntityRef, queueSize),
		pool:       pool,
		sweepEvery: sweepEvery,
		sweepTypes: sweepTypes,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}, nil
}

// Enqueue schedules vector computation for an entity. It never blocks: when
// the queue is full the reference is dropped and the next sweep picks the
// entity up again.
func (g *Generator) Enqueue(ref domain.EntityRef) {
	select {
	case g.queue <- ref:
		metrics.EmbeddingQueueDepth.Set(float64(len(g.queue)))
	default:
		metrics.EmbeddingQueueDropsTotal.Inc()
		g.logger.Warn("embedding queue full, dropping",
			zap.String("entity_type", ref.Type), zap.String("entity_id", ref.ID))
	}
}

// Start launches the queue consumer and the periodic sweep. The provided
// context bounds individual generation calls, not the generator lifetime;
// use Close for shutdown.
func (g *Generator) Start(ctx context.Context) {
	g.wg.Add(2)
	go g.consume(ctx)
	go g.sweepLoop(ctx)
}

// Close drains nothing: pending queue entries are abandoned (the sweep will
// rediscover them on next start) and in-flight workers finish.
func (g *Generator) Close() {
	close(g.stop)
	g.wg.Wait()
	g.pool.Release()
}

func (g *Generator) consume(ctx context.Context) {
	defer g.wg.Done()
	for {
		select {
		case <-g.stop:
			return
		case ref := <-g.queue:
			metrics.EmbeddingQueueDepth.Set(float64(len(g.queue)))
			if err := g.pool.Submit(func() { g.generate(ctx, ref) }); err != nil {
				g.logger.Warn("worker pool rejected task", zap.Error(err))
			}
		}
	}
}

func (g *Generator) sweepLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.sweepEvery)
	defer ticker.Stop()

	// The marker trails one extra interval so an update racing a sweep is
	// still seen by the next one.
	since := g.now().Add(-2 * g.sweepEvery)
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			next := g.now().Add(-g.sweepEvery)
			g.sweep(ctx, since)
			since = next
		}
	}
}

// sweep re-enqueues every recently changed entity whose stored vector is
// absent or belongs to a retired model.
func (g *Generator) sweep(ctx context.Context, since time.Time) {
	refs, err := g.source.ChangedSince(ctx, g.sweepTypes, since)
	if err != nil {
		g.logger.Warn("sweep query failed", zap.Error(err))
		return
	}

	stale := 0
	for _, ref := range refs {
		modelID, found, err := g.store.ModelID(ctx, ref)
		if err != nil {
			g.logger.Warn("sweep model check failed",
				zap.String("entity_id", ref.ID), zap.Error(err))
			continue
		}
		if found && modelID == g.modelID {
			continue
		}
		stale++
		g.Enqueue(ref)
	}
	if stale > 0 {
		g.logger.Info("sweep re-enqueued stale entities",
			zap.Int("count", stale), zap.Time("since", since))
	}
}

// generate computes and stores one entity's vector. Failures leave the
// entity without a current-model vector; it is excluded from semantic
// ranking until a later attempt succeeds.
func (g *Generator) generate(ctx context.Context, ref domain.EntityRef) {
	target, err := g.targets.Describe(ref.Type)
	if err != nil {
		g.fail(ref, "unknown_type", err)
		return
	}

	text, err := g.source.EmbedText(ctx, ref)
	if err != nil {
		g.fail(ref, "read", err)
		return
	}
	if text == "" {
		metrics.EmbeddingsGeneratedTotal.WithLabelValues(ref.Type, "empty").Inc()
		return
	}

	res, err := g.embedder.Embed(ctx, text)
	if err != nil {
		g.fail(ref, "embed", err)
		return
	}

	attrs, updatedAt, err := g.source.Attributes(ctx, ref, target.FilterableFields)
	if err != nil {
		g.fail(ref, "attributes", err)
		return
	}

	rec := domain.EmbeddingRecord{
		EntityID:    ref.ID,
		EntityType:  ref.Type,
		Vector:      res.Embedding,
		ModelID:     g.modelID,
		GeneratedAt: g.now(),
	}
	if err := g.store.Upsert(ctx, rec, attrs, updatedAt); err != nil {
		g.fail(ref, "store", err)
		return
	}
	metrics.EmbeddingsGeneratedTotal.WithLabelValues(ref.Type, "ok").Inc()
}

func (g *Generator) fail(ref domain.EntityRef, stage string, err error) {
	metrics.EmbeddingsGeneratedTotal.WithLabelValues(ref.Type, "error").Inc()
	g.logger.Warn("embedding generation failed",
		zap.String("entity_type", ref.Type),
		zap.String("entity_id", ref.ID),
		zap.String("stage", stage),
		zap.Error(err))
}
