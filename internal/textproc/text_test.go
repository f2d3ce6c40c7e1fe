package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b", CleanText("  a\t\n b  "))
	assert.Equal(t, "", CleanText("   "))
	assert.Equal(t, "教学 目标", CleanText("教学\n\n目标"))
}

func TestExtractKeywords(t *testing.T) {
	text := "教学目标 教学目标 反复 反复 反复 测试"
	keywords := ExtractKeywords(text, 2)
	// Priority vocabulary wins over higher raw frequency.
	assert.Equal(t, []string{"教学目标", "反复"}, keywords)

	assert.Nil(t, ExtractKeywords("", 5))
	assert.Nil(t, ExtractKeywords(text, 0))
}

func TestQualityScore(t *testing.T) {
	assert.Zero(t, QualityScore(""))

	// A long chunk hitting every signal maxes out the scale.
	rich := strings.Repeat("内容", 250) +
		"一、教学 学习 目标 重点 难点 方法 过程 活动 练习 作业 评价 学生 教师 课堂 总结"
	assert.InDelta(t, 1.0, QualityScore(rich), 0.001)

	// Short text with no lesson vocabulary scores near zero.
	assert.LessOrEqual(t, QualityScore("你好"), 0.05)

	// The score always stays on the canonical scale.
	for _, text := range []string{"你好", rich, "一、练习与总结"} {
		score := QualityScore(text)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "短文本", Summary("短文本", 10))

	long := "第一句话。第二句话。第三句话。"
	got := Summary(long, 6)
	assert.Equal(t, "第一句话。", got)

	// No sentence boundary within budget: hard truncation with ellipsis.
	noBoundary := strings.Repeat("字", 50)
	got = Summary(noBoundary, 10)
	assert.Equal(t, strings.Repeat("字", 10)+"...", got)
}
