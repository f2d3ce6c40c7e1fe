// Package parser extracts text from raw teaching material files (PDF, DOCX,
// PPTX, spreadsheets, plain text), converts it to markdown and splits it
// into overlapping chunks ready for embedding.
package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"lesson-rag/internal/config"
	"lesson-rag/internal/models"
)

const (
	defaultChunkSize    = 1000 // bytes
	defaultChunkOverlap = 500  // bytes
	defaultPageNumber   = 1
)

type chunker struct {
	size    int
	overlap int
}

// ParseToMarkdown parses the file by extension and returns markdown chunks.
func ParseToMarkdown(filePath string, cfg *config.RAGConfig) ([]models.ParsedChunk, error) {
	c := chunker{size: defaultChunkSize, overlap: defaultChunkOverlap}
	if cfg != nil && cfg.ChunkSize > 0 && cfg.ChunkOverlap > 0 {
		c.size = cfg.ChunkSize
		c.overlap = cfg.ChunkOverlap
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return c.parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".ods":
		return parseODS(filePath)
	case ".txt", ".md":
		return c.parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func (c chunker) parsePDF(filePath string) ([]models.ParsedChunk, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var chunks []models.ParsedChunk
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		markdown, err := convertToMarkdown(pageText)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c.chunksForPage(markdown, i)...)
	}
	return chunks, nil
}

func parseDOCX(filePath string) ([]models.ParsedChunk, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	paragraphs := strings.Split(doc.GetContent(), "\n")
	var chunks []models.ParsedChunk
	for _, p := range paragraphs {
		if p == "" {
			continue
		}
		markdown, err := convertToMarkdown(p)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(markdown) != "" {
			chunks = append(chunks, models.ParsedChunk{
				Content:    markdown,
				PageNumber: defaultPageNumber, // DOCX has no page numbers
			})
		}
	}
	return chunks, nil
}

func parsePPTX(filePath string) ([]models.ParsedChunk, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.ParsedChunk
	for slideNum, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		markdown, err := convertToMarkdown(extractTextFromXML(string(data)))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(markdown) != "" {
			chunks = append(chunks, models.ParsedChunk{
				Content:    markdown,
				PageNumber: slideNum + 1, // 1-based indexing
			})
		}
	}
	return chunks, nil
}

func parseXLSX(filePath string) ([]models.ParsedChunk, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var chunks []models.ParsedChunk
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		markdown, err := convertToMarkdown(text.String())
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(markdown) != "" {
			chunks = append(chunks, models.ParsedChunk{
				Content:    markdown,
				PageNumber: sheetNum + 1, // sheet index stands in for page
			})
		}
	}
	return chunks, nil
}

func parseODS(filePath string) ([]models.ParsedChunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.ParsedChunk
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		markdown, err := convertToMarkdown(text.String())
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(markdown) != "" {
			chunks = append(chunks, models.ParsedChunk{
				Content:    markdown,
				PageNumber: sheetNum + 1,
			})
		}
	}
	return chunks, nil
}

func (c chunker) parseText(filePath string) ([]models.ParsedChunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	markdown, err := convertToMarkdown(string(data))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}
	return c.chunksForPage(markdown, defaultPageNumber), nil
}

func convertToMarkdown(text string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.Trim(buf.String(), " \t\n\r"), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}

// chunkContent splits content into pieces of at most maxChars bytes with
// overlapChars of carry-over, preferring to break at a space or sentence end
// near the boundary.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		if end < contentLen {
			// Look for a break point within the last 10% of the chunk.
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		start += maxChars - overlapChars
		if start >= contentLen {
			break
		}
	}
	return chunks
}

func (c chunker) chunksForPage(content string, pageNumber int) []models.ParsedChunk {
	var chunks []models.ParsedChunk
	for i, piece := range chunkContent(content, c.size, c.overlap) {
		chunks = append(chunks, models.ParsedChunk{
			Content:    piece,
			PageNumber: pageNumber,
			ChunkID:    i + 1,
		})
	}
	return chunks
}

// JoinChunks reassembles overlapping chunks into contiguous content: every
// chunk after the first drops its leading overlap window.
func JoinChunks(chunks []models.ParsedChunk, overlapCharLen int) string {
	var content strings.Builder
	for i, chunk := range chunks {
		piece := chunk.Content
		if i > 0 && len(piece) > overlapCharLen {
			piece = piece[overlapCharLen:]
		}
		content.WriteString(piece)
	}
	return content.String()
}
