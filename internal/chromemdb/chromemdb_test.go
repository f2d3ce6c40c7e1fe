package chromemdb

import (
	"context"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-rag/internal/config"
	"lesson-rag/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	store, err := New(config.VectorDBConfig{
		Collection: "test_collection",
		InMemory:   true,
		Dimensions: 3,
	}, chromem.EmbeddingFunc(embedFn))
	require.NoError(t, err)
	return store
}

func chunk(id, content, subject, grade string, quality float64, embedding []float32) models.Chunk {
	return models.Chunk{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata: models.ChunkMetadata{
			Source:       subject + ".json",
			Subject:      subject,
			Grade:        grade,
			QualityScore: quality,
			TotalChunks:  1,
		},
	}
}

func TestAddChunksValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.AddChunks(ctx, []models.Chunk{
		chunk("ok", "有效内容", "数学", "三年级", 0.8, []float32{1, 0, 0}),
		chunk("empty", "   ", "数学", "三年级", 0.8, []float32{1, 0, 0}),
		chunk("novec", "没有向量", "数学", "三年级", 0.8, nil),
		chunk("baddim", "维度不对", "数学", "三年级", 0.8, []float32{1, 0}),
	})

	var ingErr *models.IngestionError
	require.ErrorAs(t, err, &ingErr)
	assert.Len(t, ingErr.Skipped, 3)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddChunksUpsertsByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := chunk("same-id", "第一版", "数学", "三年级", 0.8, []float32{1, 0, 0})
	require.NoError(t, store.AddChunks(ctx, []models.Chunk{c}))

	c.Content = "第二版"
	require.NoError(t, store.AddChunks(ctx, []models.Chunk{c}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByID(ctx, "same-id")
	require.NoError(t, err)
	assert.Equal(t, "第二版", got.Content)
}

func TestQueryFiltersAndClampsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, []models.Chunk{
		chunk("m1", "数学内容一", "数学", "三年级", 0.8, []float32{1, 0, 0}),
		chunk("m2", "数学内容二", "数学", "四年级", 0.4, []float32{0, 1, 0}),
		chunk("c1", "语文内容", "语文", "三年级", 0.9, []float32{0, 0, 1}),
	}))

	// Limit far above collection size must not error.
	results, err := store.Query(ctx, []float32{1, 0, 0}, models.QueryOptions{
		Limit: 50, Subject: "数学",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "数学", r.Metadata.Subject)
	}

	// Quality floor is applied after the vector search.
	results, err = store.Query(ctx, []float32{1, 0, 0}, models.QueryOptions{
		Limit: 50, Subject: "数学", MinQuality: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "数学内容一", results[0].Content)

	// Grade filter combines with subject.
	results, err = store.Query(ctx, []float32{1, 0, 0}, models.QueryOptions{
		Limit: 50, Subject: "数学", Grade: "四年级",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "数学内容二", results[0].Content)
}

func TestQueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), []float32{1, 0, 0}, models.QueryOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryComputesRelevance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, []models.Chunk{
		chunk("m1", "数学内容", "数学", "三年级", 0.8, []float32{1, 0, 0}),
	}))

	results, err := store.Query(ctx, []float32{1, 0, 0}, models.QueryOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.InDelta(t, 1.0, r.Similarity, 0.01)
	expected := r.Similarity*models.SimilarityWeight + 0.8*models.QualityWeight
	assert.InDelta(t, expected, r.RelevanceScore, 1e-9)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := chunk("kw", "教学目标与课堂练习", "数学", "三年级", 0.8, []float32{1, 0, 0})
	c.Metadata.Keywords = []string{"教学目标", "练习"}
	c.Metadata.Summary = "教学目标与课堂练习。"
	plain := chunk("plain", "无附加信息", "数学", "三年级", 0.5, []float32{0, 1, 0})
	require.NoError(t, store.AddChunks(ctx, []models.Chunk{c, plain}))

	got, err := store.GetByID(ctx, "kw")
	require.NoError(t, err)
	assert.Equal(t, []string{"教学目标", "练习"}, got.Metadata.Keywords)
	assert.Equal(t, "教学目标与课堂练习。", got.Metadata.Summary)

	got, err = store.GetByID(ctx, "plain")
	require.NoError(t, err)
	assert.Nil(t, got.Metadata.Keywords)
	assert.Empty(t, got.Metadata.Summary)
}

func TestGetByIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteCollectionResets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, []models.Chunk{
		chunk("m1", "内容", "数学", "三年级", 0.8, []float32{1, 0, 0}),
	}))
	require.NoError(t, store.DeleteCollection(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The store stays usable after a drop.
	require.NoError(t, store.AddChunks(ctx, []models.Chunk{
		chunk("m2", "新内容", "语文", "五年级", 0.6, []float32{0, 1, 0}),
	}))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStatsTracksIngestedChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, []models.Chunk{
		chunk("m1", "数学一", "数学", "三年级", 0.8, []float32{1, 0, 0}),
		chunk("m2", "数学二", "数学", "四年级", 0.4, []float32{0, 1, 0}),
		chunk("c1", "语文一", "语文", "三年级", 0.6, []float32{0, 0, 1}),
	}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, 2, stats.SubjectDistribution["数学"])
	assert.Equal(t, 1, stats.SubjectDistribution["语文"])
	assert.Equal(t, 2, stats.GradeDistribution["三年级"])
	assert.InDelta(t, 0.6, stats.AverageQualityScore, 1e-9)
}
