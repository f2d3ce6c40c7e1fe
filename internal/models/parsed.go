package models

// ParsedChunk is a chunk fresh out of a document parser, before metadata
// extraction and embedding turn it into a Chunk.
type ParsedChunk struct {
	Content    string
	PageNumber int
	ChunkID    int
}
