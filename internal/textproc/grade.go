package textproc

import "lesson-rag/internal/models"

// NormalizeGrade canonicalizes alternate grade spellings (初一 -> 七年级).
// Unmapped values pass through unchanged; empty stays empty.
func NormalizeGrade(grade string) string {
	if grade == "" {
		return grade
	}
	if canonical, ok := models.GradeMapping[grade]; ok {
		return canonical
	}
	return grade
}

func gradeIndex(grade string) int {
	for i, g := range models.GradeOrder {
		if g == grade {
			return i
		}
	}
	return -1
}

// IsGradeCompatible reports whether material tagged with candidate is a
// usable substitute for the target grade. Adjacent grades within a school
// stage count as compatible; unknown grades never do. The rule is symmetric
// in target and candidate.
func IsGradeCompatible(target, candidate string) bool {
	if target == "" || candidate == "" {
		return false
	}

	normalizedTarget := NormalizeGrade(target)
	normalizedCandidate := NormalizeGrade(candidate)

	if normalizedTarget == normalizedCandidate {
		return true
	}

	targetIdx := gradeIndex(normalizedTarget)
	candidateIdx := gradeIndex(normalizedCandidate)
	if targetIdx == -1 || candidateIdx == -1 {
		return false
	}

	diff := targetIdx - candidateIdx
	if diff < 0 {
		diff = -diff
	}

	// Elementary stage (positions 0-5): one grade of slack.
	if targetIdx <= 5 || candidateIdx <= 5 {
		return diff <= 1
	}

	// Middle school stage (positions 6-8): one grade of slack.
	if (targetIdx >= 6 && targetIdx <= 8) || (candidateIdx >= 6 && candidateIdx <= 8) {
		return diff <= 1
	}

	return false
}
