// Package textproc holds the pure text helpers used at ingestion and
// retrieval time: filename metadata extraction, grade normalization and
// compatibility, text cleanup and quality scoring.
package textproc

import (
	"regexp"
	"strings"

	"lesson-rag/internal/models"
)

// ExtractSubject derives the subject from a source filename. Unmatched
// filenames land in the catch-all subject.
func ExtractSubject(filename string) string {
	name := strings.ToLower(filename)

	for _, subject := range models.Subjects {
		if strings.Contains(name, subject) {
			return subject
		}
	}

	for variant, subject := range models.SubjectVariants {
		if strings.Contains(name, variant) {
			return subject
		}
	}

	return models.UnknownSubject
}

type gradePattern struct {
	re    *regexp.Regexp
	grade string
}

var gradePatterns = []gradePattern{
	{regexp.MustCompile(`第?一年级|1年级`), "一年级"},
	{regexp.MustCompile(`第?二年级|2年级`), "二年级"},
	{regexp.MustCompile(`第?三年级|3年级`), "三年级"},
	{regexp.MustCompile(`第?四年级|4年级`), "四年级"},
	{regexp.MustCompile(`第?五年级|5年级`), "五年级"},
	{regexp.MustCompile(`第?六年级|6年级`), "六年级"},
	{regexp.MustCompile(`第?七年级|7年级|初一`), "七年级"},
	{regexp.MustCompile(`第?八年级|8年级|初二`), "八年级"},
	{regexp.MustCompile(`第?九年级|9年级|初三`), "九年级"},
}

// ExtractGrade derives the grade from a source filename, trying direct
// matches before the numeric/alias patterns.
func ExtractGrade(filename string) string {
	name := strings.ToLower(filename)

	for _, grade := range models.Grades {
		if strings.Contains(name, grade) {
			return grade
		}
	}

	for _, gp := range gradePatterns {
		if gp.re.MatchString(name) {
			return gp.grade
		}
	}

	return models.UnknownGrade
}

var (
	bookPattern = regexp.MustCompile(
		`(一年级|二年级|三年级|四年级|五年级|六年级|七年级|八年级|九年级|高一|高二|高三)[上下]?册` +
			`(数学|语文|英语|物理|化学|生物|历史|地理|政治|音乐|美术|体育|科学|道德与法治)(.*?)电子课本`)
	anyGradePattern   = regexp.MustCompile(`一年级|二年级|三年级|四年级|五年级|六年级|七年级|八年级|九年级|高一|高二|高三`)
	anySubjectPattern = regexp.MustCompile(`数学|语文|英语|物理|化学|生物|历史|地理|政治|音乐|美术|体育|科学|道德与法治`)
	prefixPattern     = regexp.MustCompile(`^.*_`)
	nonNamePattern    = regexp.MustCompile(`[^\p{Han}a-zA-Z]`)
)

// ExtractMaterialName turns a chunk-file name into a human readable book
// name, e.g. "三年级上册数学(人教版)". Falls back to grade+subject, then to
// the cleaned filename itself.
func ExtractMaterialName(filename string) string {
	cleanName := strings.Replace(filename, ".json", "", 1)
	cleanName = prefixPattern.ReplaceAllString(cleanName, "")

	semester := ""
	if strings.Contains(cleanName, "上册") {
		semester = "上册"
	} else if strings.Contains(cleanName, "下册") {
		semester = "下册"
	}

	if m := bookPattern.FindStringSubmatch(cleanName); m != nil {
		publisher := nonNamePattern.ReplaceAllString(m[3], "")
		name := m[1] + semester + m[2]
		if publisher != "" {
			name += "(" + publisher + ")"
		}
		return name
	}

	grade := anyGradePattern.FindString(cleanName)
	subject := anySubjectPattern.FindString(cleanName)
	if grade != "" && subject != "" {
		return grade + semester + subject
	}

	return cleanName
}
