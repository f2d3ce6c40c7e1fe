package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"lesson-rag/internal/embedding"
	"lesson-rag/internal/models"
	"lesson-rag/internal/parser"
	"lesson-rag/internal/textproc"
)

// LoadMaterialFile parses a raw teaching material file (PDF, DOCX, PPTX,
// spreadsheet or text), scores and filters its chunks and stores them.
// Returns total parsed and loaded counts.
func (l *Loader) LoadMaterialFile(ctx context.Context, path string) (total, loaded int, err error) {
	parsed, err := parser.ParseToMarkdown(path, l.cfg)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse material file: %w", err)
	}
	if len(parsed) == 0 {
		return 0, 0, nil
	}

	name := filepath.Base(path)
	subject := textproc.ExtractSubject(name)
	grade := textproc.ExtractGrade(name)
	materialName := textproc.ExtractMaterialName(name)

	var chunks []models.Chunk
	for i, pc := range parsed {
		content := textproc.CleanText(pc.Content)
		if content == "" {
			continue
		}
		quality := textproc.QualityScore(content)
		if quality < l.cfg.MinQualityScore {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:      models.ChunkID(name, i),
			Content: content,
			Metadata: models.ChunkMetadata{
				Source:       name,
				Subject:      subject,
				Grade:        grade,
				MaterialName: materialName,
				Keywords:     textproc.ExtractKeywords(content, chunkKeywordCount),
				Summary:      textproc.Summary(content, chunkSummaryLen),
				QualityScore: quality,
				ChunkIndex:   i,
				TotalChunks:  len(parsed),
			},
		})
	}
	total = len(parsed)
	if len(chunks) == 0 {
		log.Warn().Str("file", name).Int("parsed", total).Msg("No chunks passed the quality floor")
		return total, 0, nil
	}

	if l.embedder == nil {
		return total, 0, fmt.Errorf("material ingestion requires an embedder")
	}
	chunks, err = embedding.EmbedChunks(ctx, l.embedder, chunks)
	if err != nil {
		return total, 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	loaded = len(chunks)
	if err := l.store.AddChunks(ctx, chunks); err != nil {
		var ingErr *models.IngestionError
		if !errors.As(err, &ingErr) {
			return total, 0, err
		}
		loaded -= len(ingErr.Skipped)
		log.Warn().Err(err).Str("file", name).Msg("Material chunks partially rejected")
	}
	log.Info().Str("file", name).Int("parsed", total).Int("loaded", loaded).
		Str("subject", subject).Str("grade", grade).Msg("Loaded material file")
	return total, loaded, nil
}
