package textproc

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"lesson-rag/internal/models"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	controlPattern    = regexp.MustCompile("[\x00-\x1f\x7f]")
	wordSplitPattern  = regexp.MustCompile(`[^\p{Han}a-zA-Z0-9]+`)
)

// CleanText collapses whitespace and strips control characters.
func CleanText(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = controlPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractKeywords returns up to max keywords by frequency, preferring
// well-known lesson-plan vocabulary over generic words.
func ExtractKeywords(text string, max int) []string {
	if text == "" || max <= 0 {
		return nil
	}

	priority := make(map[string]bool, len(models.PriorityKeywords))
	for _, kw := range models.PriorityKeywords {
		priority[kw] = true
	}

	counts := make(map[string]int)
	var order []string
	for _, word := range wordSplitPattern.Split(text, -1) {
		if len([]rune(word)) <= 1 {
			continue
		}
		if _, seen := counts[word]; !seen {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		pi, pj := priority[order[i]], priority[order[j]]
		if pi != pj {
			return pi
		}
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > max {
		order = order[:max]
	}
	return order
}

// QualityScore rates a chunk's text on the canonical 0-1 scale. It combines
// length, lesson vocabulary density, structure markers and completeness
// markers, mirroring the scoring used when source files carry no score.
func QualityScore(text string) float64 {
	if text == "" {
		return 0
	}

	var score float64

	// Length: up to 1 point at 500 runes.
	length := float64(len([]rune(text)))
	score += math.Min(length/500, 1)

	// Lesson vocabulary: up to 2 points at 5 distinct keywords.
	keywordCount := 0
	for _, kw := range models.EducationKeywords {
		if strings.Contains(text, kw) {
			keywordCount++
		}
	}
	score += math.Min(float64(keywordCount)/5, 2)

	// Structure: 1 point for numbered sections.
	for _, marker := range models.StructureMarkers {
		if strings.Contains(text, marker) {
			score++
			break
		}
	}

	// Completeness: 1 point for summary/homework sections.
	for _, marker := range models.CompletenessMarkers {
		if strings.Contains(text, marker) {
			score++
			break
		}
	}

	// Raw scale is 0-5; round to one decimal there, then canonicalize.
	score = math.Min(math.Round(score*10)/10, 5)
	return score / 5
}

var sentenceSplitPattern = regexp.MustCompile(`[。！？]`)

// Summary truncates text to maxLen runes, preferring sentence boundaries.
func Summary(text string, maxLen int) string {
	if text == "" || len([]rune(text)) <= maxLen {
		return text
	}

	var summary strings.Builder
	runeCount := 0
	for _, sentence := range sentenceSplitPattern.Split(text, -1) {
		sentenceLen := len([]rune(sentence)) + 1
		if runeCount+sentenceLen > maxLen {
			break
		}
		summary.WriteString(sentence + "。")
		runeCount += sentenceLen
	}

	if summary.Len() == 0 {
		return string([]rune(text)[:maxLen]) + "..."
	}
	return strings.TrimSpace(summary.String())
}
