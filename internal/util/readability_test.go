package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 2, CountWords("hello world"))
	assert.Equal(t, 9, CountWords("The quick brown fox jumps over the lazy dog."))
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 1, CountSentences("No terminator here"))
	assert.Equal(t, 2, CountSentences("First one. Second one!"))
	assert.Equal(t, 1, CountSentences("Trailing dots..."))
}

func TestCountSyllables(t *testing.T) {
	assert.Equal(t, 1, CountSyllables("cat"))
	assert.Equal(t, 2, CountSyllables("window"))
	// 词尾哑音e
	assert.Equal(t, 1, CountSyllables("take"))
	// 无元音兜底
	assert.Equal(t, 1, CountSyllables("tv"))
}

func TestAnalyzeReadabilitySimpleTextIsBeginner(t *testing.T) {
	report := AnalyzeReadability("The cat sat. The dog ran. I am glad.")

	assert.Equal(t, 9, report.WordCount)
	assert.Equal(t, 3, report.SentenceCount)
	assert.Equal(t, "beginner", report.Band)
	assert.GreaterOrEqual(t, report.FleschEase, 0.0)
	assert.LessOrEqual(t, report.FleschEase, 100.0)
	assert.Equal(t, 1, report.EstimatedMinutes)
}

func TestAnalyzeReadabilityComplexTextScoresHarder(t *testing.T) {
	simple := AnalyzeReadability("The cat sat. The dog ran.")
	dense := AnalyzeReadability(
		"Notwithstanding considerable institutional heterogeneity, comprehensive evaluation methodologies invariably necessitate sophisticated interdisciplinary collaboration across organizational boundaries.")

	assert.Greater(t, dense.FleschKincaid, simple.FleschKincaid)
	assert.Less(t, dense.FleschEase, simple.FleschEase)
	assert.Equal(t, "advanced", dense.Band)
}

func TestAnalyzeReadabilityEmptyText(t *testing.T) {
	report := AnalyzeReadability("")

	assert.Zero(t, report.WordCount)
	assert.Zero(t, report.FleschEase)
	assert.Zero(t, report.FleschKincaid)
}
