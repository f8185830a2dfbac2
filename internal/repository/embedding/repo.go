// Package embedding persists EmbeddingRecords and serves filtered KNN
// queries over them.
//
// Each record lives in its own hash under navsearch:emb:<type>:<id>,
// carrying the vector, the model that produced it, and a mirror of the
// entity's filterable attributes taken at generation time. One FT index per
// deployment covers all records, so a semantic query is a single FT.SEARCH
// with the structured pre-filter plus a model tag.
package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/caseflow/navsearch/internal/db"
	"github.com/caseflow/navsearch/internal/domain"
)

const (
	recJoin   = ":"
	indexName = domain.KeyPrefix + "emb_idx"
)

var recPrefix = domain.KeyPrefix + "emb:"

// Reserved hash fields; everything else in a record hash is a mirrored
// entity attribute usable as a filter tag.
const (
	fieldVector      = "vector"
	fieldModel       = "model"
	fieldEntityType  = "entity_type"
	fieldEntityID    = "entity_id"
	fieldGeneratedAt = "generated_at"
	fieldUpdatedAt   = "updated_at"
	fieldScore       = "__vector_score"
)

// store is the consumer interface for the embedding repository.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, conditions []db.Condition) (int, error)
}

// Repo stores and queries embedding records.
type Repo struct {
	store      store
	dimensions int
	hnswM      int
	hnswEF     int
	tagFields  []string
}

// New creates an embedding repository. tagFields is the union of filterable
// fields across all searchable targets; they become TAG fields in the index
// schema so structured pre-filters can reference them.
func New(s store, dimensions int, tagFields []string) *Repo {
	return &Repo{store: s, dimensions: dimensions, tagFields: tagFields}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repo) WithHNSW(m, efConstruct int) *Repo {
	r.hnswM = m
	r.hnswEF = efConstruct
	return r
}

// EnsureIndex creates the vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check embedding index: %w", err)
	}
	if exists {
		return nil
	}

	b := db.NewIndex(indexName).
		Prefix(recPrefix).
		Tag(fieldModel).
		Tag(fieldEntityType).
		Numeric(fieldUpdatedAt, true).
		VectorHNSW(fieldVector, r.dimensions, db.DistanceCosine, r.hnswM, r.hnswEF)
	for _, f := range r.tagFields {
		b = b.Tag(f)
	}

	def, err := b.Build()
	if err != nil {
		return fmt.Errorf("build embedding index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create embedding index: %w", err)
	}
	return nil
}

// Upsert replaces the record for (entity type, entity id). attrs are the
// entity's filterable attributes mirrored for pre-filtering; keys colliding
// with reserved fields are skipped.
func (r *Repo) Upsert(
	ctx context.Context, rec domain.EmbeddingRecord, attrs map[string]string, updatedAt time.Time,
) error {
	if len(rec.Vector) != r.dimensions {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(rec.Vector), r.dimensions)
	}

	fields := map[string]string{
		fieldVector:      vectorToBytes(rec.Vector),
		fieldModel:       rec.ModelID,
		fieldEntityType:  rec.EntityType,
		fieldEntityID:    rec.EntityID,
		fieldGeneratedAt: strconv.FormatInt(rec.GeneratedAt.Unix(), 10),
		fieldUpdatedAt:   strconv.FormatInt(updatedAt.Unix(), 10),
	}
	for k, v := range attrs {
		if _, reserved := fields[k]; !reserved {
			fields[k] = v
		}
	}

	if err := r.store.HSet(ctx, recKey(rec.EntityType, rec.EntityID), fields); err != nil {
		return fmt.Errorf("upsert embedding %s/%s: %w", rec.EntityType, rec.EntityID, err)
	}
	return nil
}

// ModelID returns the model that produced the stored vector for the entity,
// or found=false when no record exists.
func (r *Repo) ModelID(ctx context.Context, ref domain.EntityRef) (string, bool, error) {
	fields, err := r.store.HGetAll(ctx, recKey(ref.Type, ref.ID))
	if err != nil {
		return "", false, fmt.Errorf("get embedding %s/%s: %w", ref.Type, ref.ID, err)
	}
	if len(fields) == 0 {
		return "", false, nil
	}
	return fields[fieldModel], true, nil
}

// Delete removes the record for an entity.
func (r *Repo) Delete(ctx context.Context, ref domain.EntityRef) error {
	if err := r.store.Del(ctx, recKey(ref.Type, ref.ID)); err != nil {
		return fmt.Errorf("delete embedding %s/%s: %w", ref.Type, ref.ID, err)
	}
	return nil
}

// SearchKNN ranks current-model records of the entity type against the
// query vector, constrained by the structured conditions. Entities without
// a current-model record are absent from the index view and therefore
// excluded by construction.
func (r *Repo) SearchKNN(
	ctx context.Context, entityType, modelID string,
	vector []float32, conditions []db.Condition, k int,
) ([]domain.RankedEntity, error) {
	q := &db.KNNQuery{
		IndexName:    indexName,
		Conditions:   withScopeConditions(conditions, entityType, modelID),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldEntityID, fieldScore},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", entityType, err)
	}

	ranked := make([]domain.RankedEntity, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[fieldEntityID]
		if id == "" {
			id = strings.TrimPrefix(e.Key, recPrefix+entityType+recJoin)
		}
		ranked = append(ranked, domain.RankedEntity{ID: id, Similarity: e.Score})
	}
	return ranked, nil
}

// CountCurrent returns how many records of the entity type carry the active
// model under the given conditions. Compared against the structured
// candidate count to observe embedding coverage gaps.
func (r *Repo) CountCurrent(
	ctx context.Context, entityType, modelID string, conditions []db.Condition,
) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, withScopeConditions(conditions, entityType, modelID))
	if err != nil {
		return 0, fmt.Errorf("count embeddings %s: %w", entityType, err)
	}
	return n, nil
}

func withScopeConditions(conditions []db.Condition, entityType, modelID string) []db.Condition {
	out := make([]db.Condition, 0, len(conditions)+2)
	out = append(out,
		db.Condition{Field: fieldEntityType, Match: entityType},
		db.Condition{Field: fieldModel, Match: modelID},
	)
	return append(out, conditions...)
}

func recKey(entityType, id string) string {
	return recPrefix + entityType + recJoin + id
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
