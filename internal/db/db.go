// Package db implements the chunk store on Postgres with the pgvector
// extension, for deployments that outgrow the embedded database.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"lesson-rag/internal/config"
	"lesson-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:lesson_chunks,alias:c"`
	ID            string    `bun:"id,pk"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull"`
	Source        string    `bun:"source,notnull"`
	Subject       string    `bun:"subject"`
	Grade         string    `bun:"grade"`
	MaterialName  string    `bun:"material_name"`
	Keywords      []string  `bun:"keywords,array"`
	Summary       string    `bun:"summary"`
	QualityScore  float64   `bun:"quality_score"`
	ChunkIndex    int       `bun:"chunk_index"`
	TotalChunks   int       `bun:"total_chunks"`
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "?") {
		dsn += "?sslmode=disable"
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Store adapts the lesson_chunks table to the chunk store contract used by
// the retrieval engine.
type Store struct {
	db         *bun.DB
	dimensions int
}

const defaultDimensions = 384

func NewStore(db *bun.DB, dimensions int) *Store {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &Store{db: db, dimensions: dimensions}
}

// createTableSQL builds the chunk table DDL; the vector column width comes
// from the configured embedding dimensionality, so the schema and the
// ingestion guard can never disagree.
func createTableSQL(dimensions int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS lesson_chunks (
	id text PRIMARY KEY,
	content text NOT NULL,
	embedding vector(%d) NOT NULL,
	source text NOT NULL,
	subject text,
	grade text,
	material_name text,
	keywords text[],
	summary text,
	quality_score double precision,
	chunk_index bigint,
	total_chunks bigint
)`, dimensions)
}

// InitDB creates the vector extension and the chunk table.
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.dimensions)); err != nil {
		return fmt.Errorf("failed to create chunk table: %w", err)
	}
	return nil
}

// AddChunks upserts chunks by ID. Invalid chunks are skipped and reported
// via *models.IngestionError; valid ones in the same batch are stored.
func (s *Store) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	var docs []Document
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
		// The column width is fixed at InitDB, so mismatches cannot be adopted.
		if len(chunk.Embedding) != s.dimensions {
			skipped = append(skipped, models.SkippedChunk{
				ID:     chunk.ID,
				Reason: fmt.Sprintf("embedding dimension %d, store expects %d", len(chunk.Embedding), s.dimensions),
			})
			continue
		}

		docs = append(docs, Document{
			ID:           chunk.ID,
			Content:      chunk.Content,
			Embedding:    chunk.Embedding,
			Source:       chunk.Metadata.Source,
			Subject:      chunk.Metadata.Subject,
			Grade:        chunk.Metadata.Grade,
			MaterialName: chunk.Metadata.MaterialName,
			Keywords:     chunk.Metadata.Keywords,
			Summary:      chunk.Metadata.Summary,
			QualityScore: chunk.Metadata.QualityScore,
			ChunkIndex:   chunk.Metadata.ChunkIndex,
			TotalChunks:  chunk.Metadata.TotalChunks,
		})
	}

	if len(docs) > 0 {
		_, err := s.db.NewInsert().
			Model(&docs).
			On("CONFLICT (id) DO UPDATE").
			Set("content = EXCLUDED.content").
			Set("embedding = EXCLUDED.embedding").
			Set("source = EXCLUDED.source").
			Set("subject = EXCLUDED.subject").
			Set("grade = EXCLUDED.grade").
			Set("material_name = EXCLUDED.material_name").
			Set("keywords = EXCLUDED.keywords").
			Set("summary = EXCLUDED.summary").
			Set("quality_score = EXCLUDED.quality_score").
			Set("chunk_index = EXCLUDED.chunk_index").
			Set("total_chunks = EXCLUDED.total_chunks").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	if len(skipped) > 0 {
		return &models.IngestionError{Skipped: skipped}
	}
	return nil
}

type searchRow struct {
	Document
	Similarity float64 `bun:"similarity"`
}

// Query orders by cosine distance and returns up to opts.Limit results.
func (s *Store) Query(ctx context.Context, embedding []float32, opts models.QueryOptions) ([]models.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	vec := vectorParam(embedding)
	q := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("c.id, c.content, c.source, c.subject, c.grade, c.material_name, c.keywords, c.summary, c.quality_score, c.chunk_index, c.total_chunks").
		ColumnExpr("1 - (c.embedding <=> ?::vector) AS similarity", vec).
		OrderExpr("c.embedding <=> ?::vector", vec).
		Limit(limit)

	if opts.Subject != "" {
		q = q.Where("c.subject = ?", opts.Subject)
	}
	if opts.Grade != "" {
		q = q.Where("c.grade = ?", opts.Grade)
	}
	if opts.MinQuality > 0 {
		q = q.Where("c.quality_score >= ?", opts.MinQuality)
	}

	var rows []searchRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, models.NewSearchResult(row.Content, models.ChunkMetadata{
			Source:       row.Source,
			Subject:      row.Subject,
			Grade:        row.Grade,
			MaterialName: row.MaterialName,
			Keywords:     row.Keywords,
			Summary:      row.Summary,
			QualityScore: row.QualityScore,
			ChunkIndex:   row.ChunkIndex,
			TotalChunks:  row.TotalChunks,
		}, row.Similarity))
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Chunk, error) {
	var doc Document
	err := s.db.NewSelect().Model(&doc).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chunk{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err != nil {
		return models.Chunk{}, err
	}
	return models.Chunk{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata: models.ChunkMetadata{
			Source:       doc.Source,
			Subject:      doc.Subject,
			Grade:        doc.Grade,
			MaterialName: doc.MaterialName,
			Keywords:     doc.Keywords,
			Summary:      doc.Summary,
			QualityScore: doc.QualityScore,
			ChunkIndex:   doc.ChunkIndex,
			TotalChunks:  doc.TotalChunks,
		},
	}, nil
}

// DeleteCollection drops every stored chunk.
func (s *Store) DeleteCollection(ctx context.Context) error {
	_, err := s.db.NewTruncateTable().Model((*Document)(nil)).Exec(ctx)
	return err
}

// vectorParam renders an embedding as a pgvector literal.
func vectorParam(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
