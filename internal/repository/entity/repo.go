// Package entity is the read-only view of the portal's entity store that
// navsearch consumes: structured candidate queries, designated embed-text
// extraction, and a changed-since marker for the embedding sweep.
//
// The CRUD subsystem owns the data. It writes each entity as a hash under
// caseflow:entity:<type>:<id> with attribute and text fields plus a numeric
// updated_at; navsearch only maintains FT indexes over those hashes.
package entity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/caseflow/navsearch/internal/db"
	"github.com/caseflow/navsearch/internal/domain"
)

const entityPrefix = "caseflow:entity:"

const sweepBatch = 1000

// embedFields designates which text fields are concatenated into the
// string an entity is vectorized from.
var embedFields = map[string][]string{
	"test_case": {"name", "description", "steps", "expected_result"},
	"test_run":  {"name", "notes"},
	"defect":    {"title", "description"},
	"release":   {"name", "notes"},
	"user":      {"name", "role"},
}

var defaultEmbedFields = []string{"name", "description"}

// store is the consumer interface for entity reads.
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, conditions []db.Condition) (int, error)
}

// Repo reads portal entities for the search pipeline.
type Repo struct {
	store store
}

// New creates an entity repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the structured index for one entity type if missing.
// filterableFields become TAG fields; updated_at is the sortable default
// order.
func (r *Repo) EnsureIndex(ctx context.Context, entityType string, filterableFields []string) error {
	name := indexName(entityType)

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check entity index %s: %w", entityType, err)
	}
	if exists {
		return nil
	}

	b := db.NewIndex(name).
		Prefix(typePrefix(entityType)).
		Numeric("updated_at", true)
	for _, f := range filterableFields {
		b = b.Tag(f)
	}

	def, err := b.Build()
	if err != nil {
		return fmt.Errorf("build entity index %s: %w", entityType, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create entity index %s: %w", entityType, err)
	}
	return nil
}

// Candidates returns entity ids matching the conditions, most recently
// updated first, plus the total match count for coverage diagnostics.
func (r *Repo) Candidates(
	ctx context.Context, entityType string, conditions []db.Condition, limit int,
) ([]string, int, error) {
	q := &db.ListQuery{
		IndexName:    indexName(entityType),
		Conditions:   conditions,
		SortBy:       "updated_at",
		SortDesc:     true,
		Limit:        limit,
		ReturnFields: []string{"id"},
	}

	sr, err := r.store.SearchList(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("candidates %s: %w: %w", entityType, domain.ErrStorageQuery, err)
	}

	ids := make([]string, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if id := entityID(e, entityType); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, sr.Total, nil
}

// Count returns how many entities of the type match the conditions.
func (r *Repo) Count(ctx context.Context, entityType string, conditions []db.Condition) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName(entityType), conditions)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w: %w", entityType, domain.ErrStorageQuery, err)
	}
	return n, nil
}

// EmbedText extracts and concatenates the designated text fields of an entity.
func (r *Repo) EmbedText(ctx context.Context, ref domain.EntityRef) (string, error) {
	fields, err := r.store.HGetAll(ctx, typePrefix(ref.Type)+ref.ID)
	if err != nil {
		return "", fmt.Errorf("read entity %s/%s: %w", ref.Type, ref.ID, err)
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("entity %s/%s: %w", ref.Type, ref.ID, db.ErrKeyNotFound)
	}

	names, ok := embedFields[ref.Type]
	if !ok {
		names = defaultEmbedFields
	}

	text := ""
	for _, n := range names {
		if v := fields[n]; v != "" {
			if text != "" {
				text += "\n"
			}
			text += v
		}
	}
	return text, nil
}

// Attributes returns the entity's filterable attribute values plus its
// updated_at, for mirroring into the embedding record.
func (r *Repo) Attributes(
	ctx context.Context, ref domain.EntityRef, filterableFields []string,
) (map[string]string, time.Time, error) {
	fields, err := r.store.HGetAll(ctx, typePrefix(ref.Type)+ref.ID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read entity %s/%s: %w", ref.Type, ref.ID, err)
	}

	attrs := make(map[string]string, len(filterableFields))
	for _, f := range filterableFields {
		if v, ok := fields[f]; ok {
			attrs[f] = v
		}
	}

	var updatedAt time.Time
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		updatedAt = time.Unix(ts, 0)
	}
	return attrs, updatedAt, nil
}

// ChangedSince lists entities of the given types updated after the marker.
func (r *Repo) ChangedSince(
	ctx context.Context, entityTypes []string, since time.Time,
) ([]domain.EntityRef, error) {
	minTS := float64(since.Unix())
	var refs []domain.EntityRef

	for _, et := range entityTypes {
		q := &db.ListQuery{
			IndexName:    indexName(et),
			Conditions:   []db.Condition{{Field: "updated_at", Min: &minTS}},
			SortBy:       "updated_at",
			Limit:        sweepBatch,
			ReturnFields: []string{"id"},
		}

		sr, err := r.store.SearchList(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("changed since %s: %w", et, err)
		}
		for _, e := range sr.Entries {
			if id := entityID(e, et); id != "" {
				refs = append(refs, domain.EntityRef{ID: id, Type: et})
			}
		}
	}
	return refs, nil
}

func entityID(e db.SearchEntry, entityType string) string {
	if id := e.Fields["id"]; id != "" {
		return id
	}
	prefix := typePrefix(entityType)
	if len(e.Key) > len(prefix) {
		return e.Key[len(prefix):]
	}
	return ""
}

func typePrefix(entityType string) string {
	return entityPrefix + entityType + ":"
}

func indexName(entityType string) string {
	return domain.KeyPrefix + "entity_idx:" + entityType
}
