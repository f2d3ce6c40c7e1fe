package rag

import (
	"context"
	"errors"

	"lesson-rag/internal/models"
)

// Store is the chunk store the engine retrieves from. Implemented by
// internal/chromemdb (embedded) and internal/db (Postgres/pgvector).
// Queries must be safe for concurrent use.
type Store interface {
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, embedding []float32, opts models.QueryOptions) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id string) (models.Chunk, error)
	DeleteCollection(ctx context.Context) error
}

// Validation errors surface to the caller; everything else inside context
// retrieval is fail-soft.
var (
	ErrEmptyQuery       = errors.New("query must not be empty")
	ErrInvalidMaxTokens = errors.New("maxTokens must be positive")
)
