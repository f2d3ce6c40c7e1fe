package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"lesson-rag/internal/models"
	"lesson-rag/internal/textproc"
)

// Per-strategy quality floors and candidate counts. Earlier strategies are
// pickier; later ones trade quality for coverage.
const (
	exactMatchLimit      = 20
	exactMatchQuality    = 0.3
	subjectOnlyLimit     = 15
	subjectOnlyQuality   = 0.2
	adjacentGradeLimit   = 20
	adjacentGradeQuality = 0.2
	boostedLimit         = 12
	boostedQuality       = 0.4
	fallbackLimit        = 5
	fallbackQuality      = 0.1
	unfilteredLimit      = 8

	// Strategy trigger thresholds on the running result count.
	wideningThreshold = 5
	boostingThreshold = 3
	fallbackTarget    = 3
)

// strategy is one stage of the retrieval cascade. Stages run in order;
// whether a stage runs depends on how many results the previous stages
// accumulated, so the order must not change.
type strategy struct {
	name      string
	shouldRun func(results []models.SearchResult) bool
	run       func(ctx context.Context, results []models.SearchResult) []models.SearchResult
}

func (e *Engine) strategies(query, subject, grade string) []strategy {
	return []strategy{
		{
			name:      "exact-match",
			shouldRun: func(results []models.SearchResult) bool { return subject != "" && grade != "" },
			run: func(ctx context.Context, results []models.SearchResult) []models.SearchResult {
				found := e.trySearch(ctx, query, models.QueryOptions{
					Limit: exactMatchLimit, Subject: subject, Grade: grade, MinQuality: exactMatchQuality,
				})
				if len(found) == 0 {
					// Drop the grade filter before giving up on the subject.
					found = e.trySearch(ctx, query, models.QueryOptions{
						Limit: subjectOnlyLimit, Subject: subject, MinQuality: subjectOnlyQuality,
					})
				}
				return append(results, found...)
			},
		},
		{
			name: "adjacent-grade",
			shouldRun: func(results []models.SearchResult) bool {
				return len(results) < wideningThreshold && subject != "" && grade != ""
			},
			run: func(ctx context.Context, results []models.SearchResult) []models.SearchResult {
				found := e.trySearch(ctx, query, models.QueryOptions{
					Limit: adjacentGradeLimit, Subject: subject, MinQuality: adjacentGradeQuality,
				})
				for _, r := range found {
					if textproc.IsGradeCompatible(grade, r.Metadata.Grade) {
						results = append(results, r)
					}
				}
				return results
			},
		},
		{
			name: "boosted-subject",
			shouldRun: func(results []models.SearchResult) bool {
				return len(results) < boostingThreshold && subject != ""
			},
			run: func(ctx context.Context, results []models.SearchResult) []models.SearchResult {
				found := e.trySearch(ctx, subject+" "+query, models.QueryOptions{
					Limit: boostedLimit, Subject: subject, MinQuality: boostedQuality,
				})
				return mergeByContentKey(results, found)
			},
		},
		{
			name:      "generic-fallback",
			shouldRun: func(results []models.SearchResult) bool { return len(results) == 0 },
			run: func(ctx context.Context, results []models.SearchResult) []models.SearchResult {
				for _, generic := range generalQueries(subject, query) {
					found := e.trySearch(ctx, generic, models.QueryOptions{
						Limit: fallbackLimit, MinQuality: fallbackQuality,
					})
					results = append(results, found...)
					if len(results) >= fallbackTarget {
						break
					}
				}
				if len(results) == 0 {
					// Last resort: raw semantic search with no filters at all.
					results = e.trySearch(ctx, query, models.QueryOptions{Limit: unfilteredLimit})
				}
				return results
			},
		},
	}
}

func (e *Engine) runStrategies(ctx context.Context, query, subject, grade string) []models.SearchResult {
	var results []models.SearchResult
	for _, st := range e.strategies(query, subject, grade) {
		if !st.shouldRun(results) {
			continue
		}
		before := len(results)
		results = st.run(ctx, results)
		log.Info().
			Str("strategy", st.name).
			Int("added", len(results)-before).
			Int("total", len(results)).
			Msg("Retrieval strategy finished")
	}
	return results
}

// generalQueries builds the fallback phrase list: subject phrases, shared
// teaching phrases, then keywords picked out of the original query. Capped
// at five queries.
func generalQueries(subject, originalQuery string) []string {
	var queries []string
	if subjectQueries, ok := models.SubjectQueries[subject]; ok {
		queries = append(queries, subjectQueries...)
	}
	queries = append(queries, models.GeneralQueries...)
	queries = append(queries, queryKeywords(subject, originalQuery)...)

	if len(queries) > 5 {
		queries = queries[:5]
	}
	return queries
}

func queryKeywords(subject, query string) []string {
	var keywords []string
	for _, word := range strings.Fields(query) {
		if word == "教学" || word == "课程" || word == "教案" || word == subject {
			continue
		}
		if len([]rune(word)) > 1 {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// mergeByContentKey appends only candidates whose content prefix is not
// already present.
func mergeByContentKey(existing, candidates []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[contentKey(r.Content)] = true
	}
	for _, r := range candidates {
		if !seen[contentKey(r.Content)] {
			existing = append(existing, r)
		}
	}
	return existing
}

// contentKey identifies a chunk by its first 100 runes, enough to catch
// the same passage arriving through different strategies.
func contentKey(content string) string {
	runes := []rune(content)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	return string(runes)
}
