// Package chromemdb implements the chunk store on top of chromem-go, an
// embedded vector database with cosine similarity and metadata filters.
package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"lesson-rag/internal/config"
	"lesson-rag/internal/models"
)

const compress = false

// Store encapsulates one chromem-go collection of lesson-material chunks.
// Reads are safe for concurrent use; ingestion is a maintenance operation.
type Store struct {
	db            *chromem.DB
	collection    *chromem.Collection
	name          string
	dbPath        string
	encryptionKey string
	filePath      string
	embedFn       chromem.EmbeddingFunc

	// dimensions is fixed at store creation (or by the first ingested
	// chunk when the config leaves it zero).
	dimensions int

	statsMu sync.Mutex
	stats   collectionStats
}

type collectionStats struct {
	subjects   map[string]int
	grades     map[string]int
	qualitySum float64
	scored     int
}

// New opens (or creates) the persistent database and collection. The
// embedding function is only consulted for text queries; chunks and query
// vectors normally arrive pre-embedded.
func New(cfg config.VectorDBConfig, embedFn chromem.EmbeddingFunc) (*Store, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	s := &Store{
		db:            db,
		name:          cfg.Collection,
		dbPath:        cfg.Path,
		encryptionKey: cfg.EncryptionKey,
		filePath:      cfg.Path + "/" + cfg.Collection + ".chromem",
		embedFn:       embedFn,
		dimensions:    cfg.Dimensions,
		stats: collectionStats{
			subjects: map[string]int{},
			grades:   map[string]int{},
		},
	}

	if err := s.openCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) openCollection() error {
	c, err := s.db.GetOrCreateCollection(s.name, nil, s.embedFn)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	s.collection = c
	return nil
}

// AddChunks upserts chunks by ID in one batch. Chunks without content or
// embedding, or with the wrong dimensionality, are skipped; the returned
// *models.IngestionError lists them while valid chunks are still stored.
func (s *Store) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	var docs []chromem.Document
	var skipped []models.SkippedChunk

	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			skipped = append(skipped, models.SkippedChunk{ID: chunk.ID, Reason: "empty content"})
			continue
		}
		if len(chunk.Embedding) == 0 {
			skipped = append(skipped, models.SkippedChunk{ID: chunk.ID, Reason: "missing embedding"})
			continue
		}
		if s.dimensions == 0 {
			s.dimensions = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != s.dimensions {
			skipped = append(skipped, models.SkippedChunk{
				ID:     chunk.ID,
				Reason: fmt.Sprintf("embedding dimension %d, store expects %d", len(chunk.Embedding), s.dimensions),
			})
			continue
		}

		docs = append(docs, chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata:  encodeMetadata(chunk.Metadata),
		})
	}

	if len(docs) > 0 {
		if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}
		s.recordStats(docs)
	}

	if len(skipped) > 0 {
		log.Warn().Int("skipped", len(skipped)).Int("stored", len(docs)).Msg("Some chunks were rejected during ingestion")
		return &models.IngestionError{Skipped: skipped}
	}
	return nil
}

// Query returns up to opts.Limit chunks by descending cosine similarity,
// restricted to the metadata filters. An empty collection or an empty
// filter match yields an empty slice, not an error.
func (s *Store) Query(ctx context.Context, embedding []float32, opts models.QueryOptions) ([]models.SearchResult, error) {
	if s.collection == nil {
		return nil, fmt.Errorf("collection %s is not open", s.name)
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}
	// chromem rejects nResults larger than the collection size.
	if limit > count {
		limit = count
	}

	where := map[string]string{}
	if opts.Subject != "" && containsString(models.Subjects, opts.Subject) {
		where["subject"] = opts.Subject
	}
	if opts.Grade != "" && containsString(models.Grades, opts.Grade) {
		where["grade"] = opts.Grade
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	// Quality is a numeric >= filter, which chromem's exact-match where
	// clause cannot express; applied here instead.
	formatted := make([]models.SearchResult, 0, len(results))
	for _, res := range results {
		md := decodeMetadata(res.Metadata)
		if opts.MinQuality > 0 && md.QualityScore < opts.MinQuality {
			continue
		}
		formatted = append(formatted, models.NewSearchResult(res.Content, md, float64(res.Similarity)))
	}
	return formatted, nil
}

// Count reports how many chunks the collection holds.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.collection == nil {
		return 0, fmt.Errorf("collection %s is not open", s.name)
	}
	return s.collection.Count(), nil
}

// GetByID fetches one chunk; models.ErrNotFound when the ID is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (models.Chunk, error) {
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return models.Chunk{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return models.Chunk{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  decodeMetadata(doc.Metadata),
	}, nil
}

// DeleteCollection irreversibly drops all chunks, then reopens an empty
// collection so the store stays usable.
func (s *Store) DeleteCollection(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	s.statsMu.Lock()
	s.stats = collectionStats{subjects: map[string]int{}, grades: map[string]int{}}
	s.statsMu.Unlock()
	log.Info().Str("collection", s.name).Msg("Collection deleted")
	return s.openCollection()
}

// Stats summarizes the subject/grade distribution and average quality of
// chunks ingested through this store instance.
type Stats struct {
	TotalDocuments      int
	Collection          string
	SubjectDistribution map[string]int
	GradeDistribution   map[string]int
	AverageQualityScore float64
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats := &Stats{
		TotalDocuments:      count,
		Collection:          s.name,
		SubjectDistribution: map[string]int{},
		GradeDistribution:   map[string]int{},
	}
	for k, v := range s.stats.subjects {
		stats.SubjectDistribution[k] = v
	}
	for k, v := range s.stats.grades {
		stats.GradeDistribution[k] = v
	}
	if s.stats.scored > 0 {
		stats.AverageQualityScore = s.stats.qualitySum / float64(s.stats.scored)
	}
	return stats, nil
}

func (s *Store) recordStats(docs []chromem.Document) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	for _, doc := range docs {
		md := decodeMetadata(doc.Metadata)
		if md.Subject != "" {
			s.stats.subjects[md.Subject]++
		}
		if md.Grade != "" {
			s.stats.grades[md.Grade]++
		}
		s.stats.qualitySum += md.QualityScore
		s.stats.scored++
	}
}

// Export writes the collection to an encrypted file; used with in-memory
// databases before shutdown.
func (s *Store) Export(ctx context.Context) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if s.collection == nil {
		return fmt.Errorf("collection is required")
	}

	log.Debug().Str("collection", s.name).Str("file", s.filePath).Msg("Exporting collection")
	if err := s.db.ExportToFile(s.filePath, compress, s.encryptionKey, s.name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import restores a previously exported collection file.
func (s *Store) Import(ctx context.Context) error {
	if err := s.db.ImportFromFile(s.filePath, s.encryptionKey, s.name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return s.openCollection()
}

func encodeMetadata(md models.ChunkMetadata) map[string]string {
	return map[string]string{
		"source":        md.Source,
		"subject":       md.Subject,
		"grade":         md.Grade,
		"material_name": md.MaterialName,
		// Keywords never contain commas, extraction splits on punctuation.
		"keywords":     strings.Join(md.Keywords, ","),
		"summary":      md.Summary,
		"qualityScore": strconv.FormatFloat(md.QualityScore, 'f', -1, 64),
		"chunkIndex":   strconv.Itoa(md.ChunkIndex),
		"totalChunks":  strconv.Itoa(md.TotalChunks),
	}
}

func decodeMetadata(raw map[string]string) models.ChunkMetadata {
	md := models.ChunkMetadata{
		Source:       raw["source"],
		Subject:      raw["subject"],
		Grade:        raw["grade"],
		MaterialName: raw["material_name"],
		Summary:      raw["summary"],
	}
	if raw["keywords"] != "" {
		md.Keywords = strings.Split(raw["keywords"], ",")
	}
	md.QualityScore, _ = strconv.ParseFloat(raw["qualityScore"], 64)
	md.ChunkIndex, _ = strconv.Atoi(raw["chunkIndex"])
	md.TotalChunks, _ = strconv.Atoi(raw["totalChunks"])
	return md
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
