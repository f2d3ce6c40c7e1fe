package models

import (
	"fmt"
	"regexp"
)

// Relevance score weights, same for every store backend.
const (
	SimilarityWeight = 0.7
	QualityWeight    = 0.3
)

// ChunkMetadata describes where a chunk came from and how good it is.
// QualityScore is on the canonical 0-1 scale.
type ChunkMetadata struct {
	Source       string   `json:"source"`
	Subject      string   `json:"subject"`
	Grade        string   `json:"grade"`
	MaterialName string   `json:"material_name,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	QualityScore float64  `json:"qualityScore"`
	ChunkIndex   int      `json:"chunkIndex"`
	TotalChunks  int      `json:"totalChunks"`
}

// Chunk is a unit of retrievable teaching material. Immutable after
// ingestion; re-ingesting the same ID replaces the stored copy.
type Chunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Embedding []float32     `json:"embedding,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
}

var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\p{Han}]+`)

// ChunkID builds the stable chunk identifier from source filename and index.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", idSanitizer.ReplaceAllString(source, "_"), index)
}

// SearchResult is transient, owned by the query that produced it.
type SearchResult struct {
	Content        string
	Metadata       ChunkMetadata
	Similarity     float64
	RelevanceScore float64
	// AdjustedScore is RelevanceScore after grade re-ranking.
	AdjustedScore float64
}

// NewSearchResult computes the relevance score from similarity and quality.
func NewSearchResult(content string, md ChunkMetadata, similarity float64) SearchResult {
	r := SearchResult{Content: content, Metadata: md, Similarity: similarity}
	r.RelevanceScore = similarity*SimilarityWeight + md.QualityScore*QualityWeight
	r.AdjustedScore = r.RelevanceScore
	return r
}

// ContextBundle is the final output of context retrieval.
type ContextBundle struct {
	Context          string   `json:"context"`
	Sources          []string `json:"sources"`
	TotalResults     int      `json:"totalResults"`
	UsedResults      int      `json:"usedResults"`
	TokenCount       int      `json:"tokenCount"`
	AverageRelevance float64  `json:"averageRelevance"`
	// Degraded marks a bundle that is empty because the store was
	// unreachable, not because nothing matched.
	Degraded bool `json:"degraded,omitempty"`
}

// EmptyContextBundle is what callers get when the store is down or empty.
func EmptyContextBundle(degraded bool) *ContextBundle {
	return &ContextBundle{Sources: []string{}, Degraded: degraded}
}

// LoadReport summarizes one ingestion run over a chunk directory.
type LoadReport struct {
	TotalFiles   int         `json:"totalFiles"`
	TotalChunks  int         `json:"totalChunks"`
	LoadedChunks int         `json:"loadedChunks"`
	SkippedFiles int         `json:"skippedFiles"`
	Errors       []LoadError `json:"errors,omitempty"`
}

type LoadError struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
