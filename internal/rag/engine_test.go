package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-rag/internal/config"
	"lesson-rag/internal/models"
)

type stubEmbedder struct {
	queries []string
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	s.queries = append(s.queries, text)
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeStore struct {
	queryFn  func(opts models.QueryOptions) ([]models.SearchResult, error)
	countFn  func(ctx context.Context) (int, error)
	count    int
	countErr error
	calls    []models.QueryOptions
}

func (f *fakeStore) AddChunks(ctx context.Context, chunks []models.Chunk) error { return nil }

func (f *fakeStore) Query(ctx context.Context, embedding []float32, opts models.QueryOptions) ([]models.SearchResult, error) {
	f.calls = append(f.calls, opts)
	if f.queryFn == nil {
		return nil, nil
	}
	return f.queryFn(opts)
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx)
	}
	return f.count, f.countErr
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (models.Chunk, error) {
	return models.Chunk{}, models.ErrNotFound
}

func (f *fakeStore) DeleteCollection(ctx context.Context) error { return nil }

func result(content, subject, grade string, quality, similarity float64) models.SearchResult {
	return models.NewSearchResult(content, models.ChunkMetadata{
		Source:       subject + grade + ".json",
		Subject:      subject,
		Grade:        grade,
		QualityScore: quality,
	}, similarity)
}

func newTestEngine(store *fakeStore) (*Engine, *stubEmbedder) {
	embedder := &stubEmbedder{}
	return NewEngine(store, embedder, config.Default()), embedder
}

func TestSearchAppliesLimitDefaults(t *testing.T) {
	store := &fakeStore{count: 10}
	engine, _ := newTestEngine(store)

	_, err := engine.Search(context.Background(), "分数", models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, store.calls, 1)
	assert.Equal(t, 5, store.calls[0].Limit)

	_, err = engine.Search(context.Background(), "分数", models.QueryOptions{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 20, store.calls[1].Limit)
}

func TestSearchFiltersBySimilarityAndSorts(t *testing.T) {
	store := &fakeStore{count: 10}
	store.queryFn = func(opts models.QueryOptions) ([]models.SearchResult, error) {
		return []models.SearchResult{
			result("低相似度", "数学", "三年级", 0.5, 0.1),
			result("普通", "数学", "三年级", 0.2, 0.5),
			result("优质", "数学", "三年级", 0.9, 0.5),
		}, nil
	}
	engine, _ := newTestEngine(store)

	results, err := engine.Search(context.Background(), "分数", models.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Equal similarity: the higher-quality chunk ranks first.
	assert.Equal(t, "优质", results[0].Content)
	assert.Equal(t, "普通", results[1].Content)
}

func TestSearchPropagatesStoreError(t *testing.T) {
	store := &fakeStore{count: 10}
	store.queryFn = func(opts models.QueryOptions) ([]models.SearchResult, error) {
		return nil, errors.New("backend down")
	}
	engine, _ := newTestEngine(store)

	_, err := engine.Search(context.Background(), "分数", models.QueryOptions{})
	assert.Error(t, err)
}
