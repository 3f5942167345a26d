package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agenthands/moodmap/internal/core/common"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/llm"
)

type entry struct {
	doc    model.CountryDayDocument
	vector []float32
	norm   float64
}

// Generation is an immutable set of embedded documents. Once returned by
// NewGeneration or Builder.Build it is never mutated and is safe for
// concurrent readers.
type Generation struct {
	ID       string
	BuiltAt  time.Time
	dim      int
	ids      []string
	entries  map[string]entry
	failures []error
	embedder llm.EmbedderClient
	maxChars int
}

// Query narrows a nearest-neighbour search. K <= 0 yields no results.
type Query struct {
	K         int
	ExcludeID string
	Keep      func(model.CountryDayDocument) bool
}

// NewGeneration assembles a generation from already computed vectors.
// Records whose document is unknown are ignored. Records with a zero or non-finite
// norm are excluded and reported through Failures.
func NewGeneration(id string, builtAt time.Time, docs []model.CountryDayDocument, records []model.EmbeddingRecord, embedder llm.EmbedderClient) (*Generation, error) {
	byID := make(map[string]model.CountryDayDocument, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	g := &Generation{
		ID:       id,
		BuiltAt:  builtAt,
		entries:  make(map[string]entry, len(records)),
		embedder: embedder,
	}
	for _, r := range records {
		doc, ok := byID[r.DocumentID]
		if !ok {
			continue
		}
		if g.dim == 0 {
			g.dim = len(r.Vector)
		}
		if len(r.Vector) != g.dim {
			return nil, fmt.Errorf("failed to add %s (dim %d, generation dim %d): %w", r.DocumentID, len(r.Vector), g.dim, model.ErrDimensionMismatch)
		}
		n := norm(r.Vector)
		if degenerate(n) {
			g.failures = append(g.failures, &model.DegenerateVectorError{DocumentID: r.DocumentID})
			continue
		}
		g.entries[r.DocumentID] = entry{doc: doc, vector: r.Vector, norm: n}
		g.ids = append(g.ids, r.DocumentID)
	}
	sort.Strings(g.ids)
	return g, nil
}

func (g *Generation) Len() int {
	return len(g.ids)
}

func (g *Generation) Dim() int {
	return g.dim
}

// Incomplete reports whether any input document is missing from the generation.
func (g *Generation) Incomplete() bool {
	return len(g.failures) > 0
}

// Failures lists the per-document errors recorded while building.
func (g *Generation) Failures() []error {
	out := make([]error, len(g.failures))
	copy(out, g.failures)
	return out
}

func (g *Generation) Document(id string) (model.CountryDayDocument, bool) {
	e, ok := g.entries[id]
	return e.doc, ok
}

// Documents returns the indexed documents ordered by ID.
func (g *Generation) Documents() []model.CountryDayDocument {
	out := make([]model.CountryDayDocument, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.entries[id].doc)
	}
	return out
}

// Records returns the indexed vectors ordered by document ID.
func (g *Generation) Records() []model.EmbeddingRecord {
	out := make([]model.EmbeddingRecord, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, model.EmbeddingRecord{DocumentID: id, Vector: g.entries[id].vector, GeneratedAt: g.BuiltAt})
	}
	return out
}

// WithMaxChars returns a copy of g whose text queries are cut to n runes
// before embedding. Call it before the generation is published.
func (g *Generation) WithMaxChars(n int) *Generation {
	c := *g
	c.maxChars = n
	return &c
}

// Search ranks documents by cosine similarity to vector, highest first.
// Equal similarities are ordered by document ID.
func (g *Generation) Search(vector []float32, q Query) ([]model.SearchResult, error) {
	if q.K <= 0 || len(g.ids) == 0 {
		return []model.SearchResult{}, nil
	}
	if len(vector) != g.dim {
		return nil, model.ErrDimensionMismatch
	}
	qn := norm(vector)
	if degenerate(qn) {
		return nil, &model.DegenerateVectorError{}
	}

	results := make([]model.SearchResult, 0, len(g.ids))
	for _, id := range g.ids {
		if id == q.ExcludeID {
			continue
		}
		e := g.entries[id]
		if q.Keep != nil && !q.Keep(e.doc) {
			continue
		}
		results = append(results, model.SearchResult{
			Match: model.Match{
				DocumentID: id,
				Similarity: clampUnit(dot(vector, e.vector) / (qn * e.norm)),
			},
			Country:  e.doc.Country,
			Day:      e.doc.Day.Format(model.DayLayout),
			TopicDoc: e.doc.TopicDoc,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > q.K {
		results = results[:q.K]
	}
	return results, nil
}

// QueryByDocument finds the neighbours of an indexed document.
func (g *Generation) QueryByDocument(id string, k int, excludeSelf bool) ([]model.SearchResult, error) {
	q := Query{K: k}
	if excludeSelf {
		q.ExcludeID = id
	}
	return g.Neighbors(id, q)
}

// Neighbors is QueryByDocument with a caller supplied filter.
func (g *Generation) Neighbors(id string, q Query) ([]model.SearchResult, error) {
	e, ok := g.entries[id]
	if !ok {
		return nil, &model.NotFoundError{DocumentID: id}
	}
	return g.Search(e.vector, q)
}

// QueryByText embeds text with the generation's embedder and searches for it.
func (g *Generation) QueryByText(ctx context.Context, text string, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return []model.SearchResult{}, nil
	}
	if g.embedder == nil {
		return nil, errors.New("generation has no embedder for text queries")
	}
	vec, err := g.embedder.Embed(ctx, common.Truncate(text, g.maxChars))
	if err != nil {
		return nil, &model.EmbeddingServiceError{Cause: err}
	}
	return g.Search(vec, Query{K: k})
}
