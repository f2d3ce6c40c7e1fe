package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"lesson-rag/internal/models"
	"lesson-rag/internal/textproc"
)

// Re-ranking adjustments for grade fit, applied on top of the base
// relevance score.
const (
	exactGradeBonus       = 0.3
	compatibleGradeBonus  = 0.1
	incompatiblePenalty   = 0.2
	similarityGate        = 0.35
	relaxedSimilarityGate = 0.25

	// Assembly stops once the accumulated content reaches this share of
	// the budget; a truncated block needs this much room to be worth it.
	budgetFillRatio  = 0.95
	minTruncateRoom  = 200
	truncationMarker = "..."
)

// GetRelevantContext retrieves, re-ranks and assembles a bounded context
// for the given lesson query. Subject and grade may be empty. Backend
// failures degrade to an empty bundle; only argument validation errors
// propagate.
func (e *Engine) GetRelevantContext(ctx context.Context, query, subject, grade string, maxTokens int) (*models.ContextBundle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxTokens <= 0 {
		return nil, ErrInvalidMaxTokens
	}

	normalizedGrade := textproc.NormalizeGrade(grade)
	log.Info().
		Str("query", query).
		Str("subject", subject).
		Str("grade", grade).
		Str("normalizedGrade", normalizedGrade).
		Int("maxTokens", maxTokens).
		Msg("Context retrieval started")

	// Probe the store before running the cascade; an unreachable backend
	// must not block lesson generation, so the probe gets the same deadline
	// as every query.
	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.RAG.QueryTimeout)
	_, err := e.store.Count(probeCtx)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Chunk store unreachable, returning empty context")
		return models.EmptyContextBundle(true), nil
	}

	results := e.runStrategies(ctx, query, subject, normalizedGrade)

	unique := dedupeByContentKey(results)
	reranked := e.rerankByGrade(unique, normalizedGrade)
	ranked := gateAndSort(reranked)

	bundle := assembleContext(ranked, maxTokens)
	log.Info().
		Int("contextLength", len([]rune(bundle.Context))).
		Int("totalResults", bundle.TotalResults).
		Int("usedResults", bundle.UsedResults).
		Float64("averageRelevance", bundle.AverageRelevance).
		Strs("sources", bundle.Sources).
		Msg("Context retrieval complete")
	return bundle, nil
}

func dedupeByContentKey(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(results))
	unique := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		key := contentKey(r.Content)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, r)
		}
	}
	return unique
}

// rerankByGrade nudges each result's score by how well its grade fits the
// target: exact match is a strong bonus, an adjacent grade a small one,
// anything else a penalty. Results without grade info are left alone.
func (e *Engine) rerankByGrade(results []models.SearchResult, normalizedGrade string) []models.SearchResult {
	reranked := make([]models.SearchResult, len(results))
	for i, r := range results {
		adjusted := r.RelevanceScore
		if r.Metadata.Grade != "" && normalizedGrade != "" {
			switch {
			case r.Metadata.Grade == normalizedGrade:
				adjusted += exactGradeBonus
			case textproc.IsGradeCompatible(normalizedGrade, r.Metadata.Grade):
				adjusted += compatibleGradeBonus
			default:
				adjusted -= incompatiblePenalty
			}
		}
		r.AdjustedScore = adjusted
		reranked[i] = r
	}
	return reranked
}

// gateAndSort drops low-similarity results and orders the rest by adjusted
// score. When the standard gate would empty a non-empty set, it is relaxed
// once so the caller still gets something to work with.
func gateAndSort(results []models.SearchResult) []models.SearchResult {
	threshold := similarityGate

	anyAboveGate := false
	for _, r := range results {
		if r.Similarity > similarityGate {
			anyAboveGate = true
			break
		}
	}
	if !anyAboveGate && len(results) > 0 {
		threshold = relaxedSimilarityGate
		log.Info().
			Float64("originalThreshold", similarityGate).
			Float64("newThreshold", threshold).
			Msg("Relaxing similarity threshold to keep results")
	}

	ranked := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity > threshold {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AdjustedScore > ranked[j].AdjustedScore
	})
	return ranked
}

// assembleContext concatenates source-labelled blocks until the budget is
// nearly spent. Budget accounting covers chunk content; the short source
// labels ride along as tolerated overhead.
func assembleContext(ranked []models.SearchResult, maxTokens int) *models.ContextBundle {
	var context strings.Builder
	tokenCount := 0
	var sources []string
	seenSources := map[string]bool{}
	used := make([]models.SearchResult, 0, len(ranked))

	for _, result := range ranked {
		content := result.Content
		contentLen := len([]rune(content))

		remaining := maxTokens - tokenCount
		if contentLen > remaining {
			switch {
			case remaining > minTruncateRoom:
				content = truncateRunes(content, remaining-50) + truncationMarker
			case len(used) == 0 && remaining > len(truncationMarker):
				// Never return an empty bundle when results exist: squeeze
				// the best one into the whole budget.
				content = truncateRunes(content, remaining-len(truncationMarker)) + truncationMarker
			default:
				break
			}
			if len([]rune(content)) > remaining {
				break
			}
		}

		source := result.Metadata.Source
		if source == "" {
			source = models.UnknownSource
		}

		context.WriteString(fmt.Sprintf("\n\n[来源: %s]\n%s", source, content))
		tokenCount += len([]rune(content))
		if !seenSources[source] {
			seenSources[source] = true
			sources = append(sources, source)
		}
		used = append(used, result)

		if float64(tokenCount) >= float64(maxTokens)*budgetFillRatio {
			break
		}
	}

	bundle := &models.ContextBundle{
		Context:      strings.TrimSpace(context.String()),
		Sources:      sources,
		TotalResults: len(ranked),
		UsedResults:  len(used),
		TokenCount:   tokenCount,
	}
	if bundle.Sources == nil {
		bundle.Sources = []string{}
	}
	if len(used) > 0 {
		sum := 0.0
		for _, r := range used {
			sum += r.RelevanceScore
		}
		bundle.AverageRelevance = sum / float64(len(used))
	}
	return bundle
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if n < 0 {
		n = 0
	}
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
