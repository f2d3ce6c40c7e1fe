// Package rag implements the retrieval engine: cascading search strategies
// over a chunk store, grade-aware re-ranking, deduplication and
// token-budgeted context assembly for the completion prompt.
package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"lesson-rag/internal/config"
	"lesson-rag/internal/models"
)

// Engine holds its collaborators explicitly; construct one per process and
// share it freely, retrieval is read-only.
type Engine struct {
	store    Store
	embedder embeddings.Embedder
	cfg      *config.Config
}

func NewEngine(store Store, embedder embeddings.Embedder, cfg *config.Config) *Engine {
	return &Engine{store: store, embedder: embedder, cfg: cfg}
}

// Search embeds the query, runs one filtered similarity query and returns
// results above the base similarity floor, best relevance first.
func (e *Engine) Search(ctx context.Context, query string, opts models.QueryOptions) ([]models.SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.RAG.DefaultLimit
	}
	if opts.Limit > e.cfg.RAG.MaxLimit {
		opts.Limit = e.cfg.RAG.MaxLimit
	}

	qctx, cancel := context.WithTimeout(ctx, e.cfg.RAG.QueryTimeout)
	defer cancel()

	vector, err := e.embedder.EmbedQuery(qctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Query(qctx, vector, opts)
	if err != nil {
		return nil, err
	}

	kept := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= e.cfg.RAG.MinSimilarity {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})

	log.Debug().
		Str("query", query).
		Int("raw", len(results)).
		Int("kept", len(kept)).
		Msg("Search complete")
	return kept, nil
}

// trySearch is the fail-soft variant used by the strategy pipeline: a
// backend or embedding failure is logged and treated as zero results.
func (e *Engine) trySearch(ctx context.Context, query string, opts models.QueryOptions) []models.SearchResult {
	results, err := e.Search(ctx, query, opts)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Search failed, continuing without results")
		return nil
	}
	return results
}
