package index

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	ab, err := Cosine(a, b)
	require.NoError(t, err)
	ba, err := Cosine(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	self, err := Cosine(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-9)

	opp, err := Cosine([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opp, 1e-9)
}

func TestCosineErrors(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)

	_, err = Cosine([]float32{0, 0}, []float32{1, 2})
	var degenerate *model.DegenerateVectorError
	assert.True(t, errors.As(err, &degenerate))

	_, err = Cosine([]float32{float32(math.NaN()), 1}, []float32{1, 2})
	assert.True(t, errors.As(err, &degenerate))
}

func buildFixture(t *testing.T) (*Generation, *MockEmbedder) {
	t.Helper()
	docs := []model.CountryDayDocument{
		testDoc("US", "2025-01-01"),
		testDoc("FR", "2025-01-01"),
		testDoc("US", "2025-01-02"),
		testDoc("DE", "2025-01-02"),
	}
	emb := &MockEmbedder{Vectors: map[string][]float32{
		docs[0].TopicDoc: {1, 0, 0},
		docs[1].TopicDoc: {0.9, 0.1, 0},
		docs[2].TopicDoc: {0.8, 0.2, 0},
		docs[3].TopicDoc: {0, 0, 1},
		"wildfire":       {1, 0.05, 0},
	}}
	gen, err := NewBuilder(emb, BuilderConfig{Concurrency: 2}, nil, nil).Build(context.Background(), docs)
	require.NoError(t, err)
	return gen, emb
}

func TestBuildAndQueryByDocument(t *testing.T) {
	gen, _ := buildFixture(t)
	assert.Equal(t, 4, gen.Len())
	assert.Equal(t, 3, gen.Dim())
	assert.False(t, gen.Incomplete())
	assert.NotEmpty(t, gen.ID)

	res, err := gen.QueryByDocument("US-2025-01-01", 2, true)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "FR-2025-01-01", res[0].DocumentID)
	assert.Equal(t, "US-2025-01-02", res[1].DocumentID)
	assert.GreaterOrEqual(t, res[0].Similarity, res[1].Similarity)
	assert.Equal(t, "FR", res[0].Country)
	assert.Equal(t, "2025-01-01", res[0].Day)

	withSelf, err := gen.QueryByDocument("US-2025-01-01", 1, false)
	require.NoError(t, err)
	require.Len(t, withSelf, 1)
	assert.Equal(t, "US-2025-01-01", withSelf[0].DocumentID)
	assert.InDelta(t, 1.0, withSelf[0].Similarity, 1e-9)
}

func TestExcludeSelfNeverReturnsQueriedID(t *testing.T) {
	gen, _ := buildFixture(t)
	for _, d := range gen.Documents() {
		res, err := gen.QueryByDocument(d.ID, 10, true)
		require.NoError(t, err)
		assert.Len(t, res, gen.Len()-1)
		for _, r := range res {
			assert.NotEqual(t, d.ID, r.DocumentID)
		}
	}
}

func TestKLargerThanIndex(t *testing.T) {
	docs := []model.CountryDayDocument{testDoc("US", "2025-01-01"), testDoc("FR", "2025-01-01")}
	emb := &MockEmbedder{Vectors: map[string][]float32{
		docs[0].TopicDoc: {1, 0},
		docs[1].TopicDoc: {0, 1},
	}}
	gen, err := NewBuilder(emb, BuilderConfig{}, nil, nil).Build(context.Background(), docs)
	require.NoError(t, err)

	res, err := gen.QueryByDocument("US-2025-01-01", 3, true)
	require.NoError(t, err)
	assert.Len(t, res, 1)

	none, err := gen.QueryByDocument("US-2025-01-01", 0, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryByDocumentNotFound(t *testing.T) {
	gen, _ := buildFixture(t)
	_, err := gen.QueryByDocument("XX-2025-01-01", 3, true)

	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "XX-2025-01-01", nf.DocumentID)
}

func TestQueryByText(t *testing.T) {
	gen, _ := buildFixture(t)
	res, err := gen.QueryByText(context.Background(), "wildfire", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "US-2025-01-01", res[0].DocumentID)

	_, err = gen.QueryByText(context.Background(), "no such text", 1)
	var svc *model.EmbeddingServiceError
	assert.True(t, errors.As(err, &svc))
}

func TestNeighborsKeepFilter(t *testing.T) {
	gen, _ := buildFixture(t)
	cutoff := testDay("2025-01-02")
	res, err := gen.Neighbors("US-2025-01-02", Query{
		K:         5,
		ExcludeID: "US-2025-01-02",
		Keep:      func(d model.CountryDayDocument) bool { return d.Day.Before(cutoff) },
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, "2025-01-01", r.Day)
	}
}

func TestSearchTiesOrderedByID(t *testing.T) {
	docs := []model.CountryDayDocument{testDoc("ZA", "2025-01-01"), testDoc("AR", "2025-01-01"), testDoc("MX", "2025-01-01")}
	records := []model.EmbeddingRecord{
		{DocumentID: docs[0].ID, Vector: []float32{1, 1}},
		{DocumentID: docs[1].ID, Vector: []float32{2, 2}},
		{DocumentID: docs[2].ID, Vector: []float32{3, 3}},
	}
	gen, err := NewGeneration("g1", time.Now(), docs, records, nil)
	require.NoError(t, err)

	res, err := gen.Search([]float32{1, 1}, Query{K: 3})
	require.NoError(t, err)
	ids := []string{res[0].DocumentID, res[1].DocumentID, res[2].DocumentID}
	assert.Equal(t, []string{"AR-2025-01-01", "MX-2025-01-01", "ZA-2025-01-01"}, ids)
}

func TestSearchRejectsBadQueryVector(t *testing.T) {
	gen, _ := buildFixture(t)
	_, err := gen.Search([]float32{1, 0}, Query{K: 1})
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)

	var degenerate *model.DegenerateVectorError
	for _, v := range [][]float32{
		{0, 0, 0},
		{float32(math.NaN()), 1, 0},
		{float32(math.Inf(1)), 0, 0},
	} {
		_, err = gen.Search(v, Query{K: 1})
		assert.True(t, errors.As(err, &degenerate), "query %v", v)
	}
}

func TestBuildPartialFailure(t *testing.T) {
	docs := []model.CountryDayDocument{
		testDoc("US", "2025-01-01"),
		testDoc("FR", "2025-01-01"),
		testDoc("DE", "2025-01-01"),
		testDoc("IT", "2025-01-01"),
	}
	emb := &MockEmbedder{
		Vectors: map[string][]float32{
			docs[0].TopicDoc: {1, 0},
			docs[2].TopicDoc: {0, 0},
			docs[3].TopicDoc: {1, 0, 0},
		},
		Fail: map[string]error{docs[1].TopicDoc: errors.New("503")},
	}
	gen, err := NewBuilder(emb, BuilderConfig{Concurrency: 4}, nil, nil).Build(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.Len())
	assert.True(t, gen.Incomplete())
	failures := gen.Failures()
	require.Len(t, failures, 3)

	var svc *model.EmbeddingServiceError
	var degenerate *model.DegenerateVectorError
	var svcIDs []string
	degenerateCount := 0
	for _, f := range failures {
		if errors.As(f, &svc) {
			svcIDs = append(svcIDs, svc.DocumentID)
		}
		if errors.As(f, &degenerate) {
			degenerateCount++
			assert.Equal(t, "DE-2025-01-01", degenerate.DocumentID)
		}
	}
	assert.ElementsMatch(t, []string{"FR-2025-01-01", "IT-2025-01-01"}, svcIDs)
	assert.Equal(t, 1, degenerateCount)

	_, err = gen.QueryByDocument("FR-2025-01-01", 1, true)
	var nf *model.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestBuildAllFailIsUnavailable(t *testing.T) {
	docs := []model.CountryDayDocument{testDoc("US", "2025-01-01")}
	emb := &MockEmbedder{Fail: map[string]error{docs[0].TopicDoc: errors.New("down")}}

	_, err := NewBuilder(emb, BuilderConfig{}, nil, nil).Build(context.Background(), docs)
	assert.ErrorIs(t, err, model.ErrIndexUnavailable)
}

func TestBuildEmpty(t *testing.T) {
	gen, err := NewBuilder(&MockEmbedder{}, BuilderConfig{}, nil, nil).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, gen.Len())

	res, err := gen.QueryByText(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestBuildTimeoutSkipsDocument(t *testing.T) {
	docs := []model.CountryDayDocument{testDoc("US", "2025-01-01")}
	b := NewBuilder(SlowEmbedder{}, BuilderConfig{Timeout: 10 * time.Millisecond}, nil, nil)

	_, err := b.Build(context.Background(), docs)
	require.ErrorIs(t, err, model.ErrIndexUnavailable)
}

func TestBuildCancelledAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs := []model.CountryDayDocument{testDoc("US", "2025-01-01")}

	_, err := NewBuilder(&MockEmbedder{}, BuilderConfig{}, nil, nil).Build(ctx, docs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildBatchFallsBackPerDocument(t *testing.T) {
	docs := []model.CountryDayDocument{
		testDoc("US", "2025-01-01"),
		testDoc("FR", "2025-01-01"),
		testDoc("DE", "2025-01-01"),
	}
	emb := &MockBatchEmbedder{MockEmbedder: MockEmbedder{
		Vectors: map[string][]float32{
			docs[0].TopicDoc: {1, 0},
			docs[2].TopicDoc: {0, 1},
		},
		Fail: map[string]error{docs[1].TopicDoc: errors.New("bad input")},
	}}

	gen, err := NewBuilder(emb, BuilderConfig{BatchSize: 10}, nil, nil).Build(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.BatchCalls)
	assert.Equal(t, 3, emb.Calls)
	assert.Equal(t, 2, gen.Len())
	assert.True(t, gen.Incomplete())
}

func TestBuildTruncatesText(t *testing.T) {
	doc := testDoc("US", "2025-01-01")
	doc.TopicDoc = "abcdefghij"
	emb := &MockEmbedder{Vectors: map[string][]float32{"abcd": {1, 0}}}

	gen, err := NewBuilder(emb, BuilderConfig{MaxChars: 4}, nil, nil).Build(context.Background(), []model.CountryDayDocument{doc})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Len())
}

func TestNewGenerationWithMaxChars(t *testing.T) {
	doc := testDoc("US", "2025-01-01")
	emb := &MockEmbedder{Vectors: map[string][]float32{"abcd": {1, 0}}}
	gen, err := NewGeneration("g", time.Now(), []model.CountryDayDocument{doc}, []model.EmbeddingRecord{
		{DocumentID: doc.ID, Vector: []float32{1, 0}},
	}, emb)
	require.NoError(t, err)

	_, err = gen.QueryByText(context.Background(), "abcdefgh", 1)
	var svc *model.EmbeddingServiceError
	assert.True(t, errors.As(err, &svc))

	limited := gen.WithMaxChars(4)
	res, err := limited.QueryByText(context.Background(), "abcdefgh", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, doc.ID, res[0].DocumentID)
	assert.Equal(t, gen.ID, limited.ID)

	_, err = gen.QueryByText(context.Background(), "abcdefgh", 1)
	assert.Error(t, err)
}

func TestNewGenerationDimensionMismatch(t *testing.T) {
	docs := []model.CountryDayDocument{testDoc("US", "2025-01-01"), testDoc("FR", "2025-01-01")}
	_, err := NewGeneration("g", time.Now(), docs, []model.EmbeddingRecord{
		{DocumentID: docs[0].ID, Vector: []float32{1, 0}},
		{DocumentID: docs[1].ID, Vector: []float32{1, 0, 0}},
	}, nil)
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)
}

func TestHandlePublish(t *testing.T) {
	var h Handle
	_, err := h.Current()
	assert.ErrorIs(t, err, model.ErrIndexUnavailable)

	g1, _ := buildFixture(t)
	assert.Nil(t, h.Publish(g1))

	cur, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, g1, cur)

	g2, _ := buildFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g, err := h.Current()
				if assert.NoError(t, err) {
					assert.Equal(t, 4, g.Len())
				}
			}
		}()
	}
	prev := h.Publish(g2)
	wg.Wait()
	assert.Same(t, g1, prev)
}
