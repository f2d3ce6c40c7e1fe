package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSubject(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"三年级上册数学电子课本.json", "数学"},
		{"五年级语文教案.json", "语文"},
		{"初二物理实验.json", "物理"},
		{"七年级道德与法治上册.json", "政治"},
		{"四年级科学探究.json", "物理"},
		{"random-notes.json", "其他"},
		{"", "其他"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSubject(tt.filename), "filename %q", tt.filename)
	}
}

func TestExtractGrade(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"三年级数学.json", "三年级"},
		{"小学三年级语文.json", "三年级"},
		{"7年级英语.json", "七年级"},
		{"初二物理.json", "八年级"},
		{"初三化学总复习.json", "九年级"},
		{"教学笔记.json", "未知"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractGrade(tt.filename), "filename %q", tt.filename)
	}
}

func TestExtractMaterialName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		// Full book pattern with publisher.
		{"chunks_三年级上册数学人教版电子课本.json", "三年级上册数学(人教版)"},
		// Book pattern without a recognizable publisher.
		{"三年级下册语文电子课本.json", "三年级下册语文"},
		// Grade and subject present but no book marker.
		{"三年级数学讲义.json", "三年级数学"},
		// Nothing recognizable: cleaned filename passes through.
		{"教学笔记.json", "教学笔记"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractMaterialName(tt.filename), "filename %q", tt.filename)
	}
}
