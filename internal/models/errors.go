package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Store.GetByID for unknown chunk IDs.
var ErrNotFound = errors.New("chunk not found")

// SkippedChunk names one chunk rejected during ingestion and why.
type SkippedChunk struct {
	ID     string
	Reason string
}

// IngestionError reports chunks rejected by AddChunks. Valid chunks in the
// same batch are still stored (skip-and-continue policy).
type IngestionError struct {
	Skipped []SkippedChunk
}

func (e *IngestionError) Error() string {
	if len(e.Skipped) == 0 {
		return "ingestion error"
	}
	reasons := make([]string, 0, len(e.Skipped))
	for i, s := range e.Skipped {
		if i == 3 {
			reasons = append(reasons, "...")
			break
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", s.ID, s.Reason))
	}
	return fmt.Sprintf("ingestion rejected %d chunk(s): %s", len(e.Skipped), strings.Join(reasons, "; "))
}
