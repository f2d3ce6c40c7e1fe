// Package ingest loads pre-chunked lesson material from JSON files into a
// chunk store. Two file shapes are accepted: a flat array of chunk objects,
// and the legacy {"filename": ..., "chunks": [...]} wrapper.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"lesson-rag/internal/config"
	"lesson-rag/internal/embedding"
	"lesson-rag/internal/models"
	"lesson-rag/internal/textproc"
)

// Store is the slice of the chunk store the loader needs.
type Store interface {
	AddChunks(ctx context.Context, chunks []models.Chunk) error
}

// defaultQualityScore is assumed when a chunk file carries no score.
const defaultQualityScore = 0.5

// Per-chunk enrichment recorded in metadata at ingestion.
const (
	chunkKeywordCount = 5
	chunkSummaryLen   = 100
)

type rawChunk struct {
	Content      string      `json:"content"`
	QualityScore float64     `json:"qualityScore"`
	Embedding    []float32   `json:"embedding"`
	Metadata     rawMetadata `json:"metadata"`
}

type rawMetadata struct {
	Subject      string  `json:"subject"`
	Grade        string  `json:"grade"`
	QualityScore float64 `json:"qualityScore"`
}

type legacyDocument struct {
	Filename string     `json:"filename"`
	Chunks   []rawChunk `json:"chunks"`
}

type Loader struct {
	store    Store
	embedder embeddings.Embedder
	cfg      *config.RAGConfig
}

func NewLoader(store Store, embedder embeddings.Embedder, cfg *config.RAGConfig) *Loader {
	return &Loader{store: store, embedder: embedder, cfg: cfg}
}

// LoadDirectory ingests every .json file under dir. Files that fail to
// parse or embed are skipped and reported; the rest of the run continues.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*models.LoadReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk directory: %w", err)
	}

	report := &models.LoadReport{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		report.TotalFiles++

		info, err := entry.Info()
		if err == nil && info.Size() > l.cfg.MaxFileSize {
			log.Warn().Str("file", entry.Name()).Int64("size", info.Size()).Msg("Skipping oversized chunk file")
			report.SkippedFiles++
			continue
		}

		total, loaded, err := l.loadFile(ctx, filepath.Join(dir, entry.Name()), entry.Name())
		report.TotalChunks += total
		report.LoadedChunks += loaded
		if err != nil {
			log.Error().Err(err).Str("file", entry.Name()).Msg("Failed to load chunk file")
			report.Errors = append(report.Errors, models.LoadError{File: entry.Name(), Err: err.Error()})
			continue
		}
		log.Info().Str("file", entry.Name()).Int("total", total).Int("loaded", loaded).Msg("Loaded chunk file")
	}

	log.Info().
		Int("files", report.TotalFiles).
		Int("chunks", report.TotalChunks).
		Int("loaded", report.LoadedChunks).
		Int("skippedFiles", report.SkippedFiles).
		Int("errors", len(report.Errors)).
		Msg("Chunk directory load complete")
	return report, nil
}

func (l *Loader) loadFile(ctx context.Context, path, name string) (total, loaded int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}

	total, chunks, err := ParseChunkFile(data, name, l.cfg.MinQualityScore)
	if err != nil {
		return total, 0, err
	}
	if len(chunks) == 0 {
		return total, 0, nil
	}

	if l.embedder != nil {
		chunks, err = embedding.EmbedChunks(ctx, l.embedder, chunks)
		if err != nil {
			return total, 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
	}

	batchSize := l.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		if err := l.store.AddChunks(ctx, batch); err != nil {
			var ingErr *models.IngestionError
			// Partial rejection: valid chunks were stored, count them.
			if errors.As(err, &ingErr) {
				loaded += len(batch) - len(ingErr.Skipped)
				log.Warn().Err(err).Str("file", name).Msg("Batch partially rejected")
				continue
			}
			return total, loaded, err
		}
		loaded += len(batch)
	}
	return total, loaded, nil
}

// ParseChunkFile decodes a chunk file in either supported shape, applies
// the quality floor and derives metadata from the filename. The returned
// total counts chunks before filtering.
func ParseChunkFile(data []byte, filename string, minQuality float64) (int, []models.Chunk, error) {
	var raw []rawChunk
	if err := json.Unmarshal(data, &raw); err != nil {
		var legacy legacyDocument
		if err := json.Unmarshal(data, &legacy); err != nil || legacy.Chunks == nil {
			return 0, nil, fmt.Errorf("no valid chunks found in %s", filename)
		}
		raw = legacy.Chunks
		if legacy.Filename != "" {
			filename = legacy.Filename
		}
	}

	subject := textproc.ExtractSubject(filename)
	grade := textproc.ExtractGrade(filename)
	materialName := textproc.ExtractMaterialName(filename)

	var chunks []models.Chunk
	for i, rc := range raw {
		if strings.TrimSpace(rc.Content) == "" {
			continue
		}

		quality := rc.QualityScore
		if quality == 0 {
			quality = rc.Metadata.QualityScore
		}
		if quality == 0 {
			quality = defaultQualityScore
		}
		// Legacy files score on a 0-5 scale; canonical is 0-1.
		if quality > 1 {
			quality = quality / 5
		}
		if quality < minQuality {
			continue
		}

		chunkSubject := rc.Metadata.Subject
		if chunkSubject == "" || subject != models.UnknownSubject {
			chunkSubject = subject
		}
		chunkGrade := rc.Metadata.Grade
		if chunkGrade == "" || grade != models.UnknownGrade {
			chunkGrade = grade
		}

		content := strings.TrimSpace(rc.Content)
		chunks = append(chunks, models.Chunk{
			ID:        models.ChunkID(filename, i),
			Content:   content,
			Embedding: rc.Embedding,
			Metadata: models.ChunkMetadata{
				Source:       filename,
				Subject:      chunkSubject,
				Grade:        chunkGrade,
				MaterialName: materialName,
				Keywords:     textproc.ExtractKeywords(content, chunkKeywordCount),
				Summary:      textproc.Summary(content, chunkSummaryLen),
				QualityScore: quality,
				ChunkIndex:   i,
				TotalChunks:  len(raw),
			},
		})
	}
	return len(raw), chunks, nil
}
