package util

import (
	"math"
	"regexp"
	"strings"
)

// 可读性分析：Flesch Reading Ease 与 Flesch-Kincaid Grade
// 用于给提交盖可读性标记，并校验调用方报告的字数

var wordPattern = regexp.MustCompile(`\b\w+\b`)
var sentenceSplit = regexp.MustCompile(`[.!?]+`)

type ReadabilityReport struct {
	WordCount        int     `json:"wordCount"`
	SentenceCount    int     `json:"sentenceCount"`
	SyllableCount    int     `json:"syllableCount"`
	FleschEase       float64 `json:"fleschEase"`
	FleschKincaid    float64 `json:"fleschKincaid"`
	Band             string  `json:"band"` // beginner / intermediate / advanced
	EstimatedMinutes int     `json:"estimatedMinutes"`
}

// CountSyllables 简单启发式音节计数
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	const vowels = "aeiouy"
	count := 0
	prevVowel := false
	for _, ch := range word {
		isVowel := strings.ContainsRune(vowels, ch)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	// 词尾哑音e
	if strings.HasSuffix(word, "e") {
		count--
	}
	if count <= 0 {
		count = 1
	}
	return count
}

func CountWords(text string) int {
	return len(wordPattern.FindAllString(text, -1))
}

func CountSentences(text string) int {
	parts := sentenceSplit.Split(text, -1)
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// AnalyzeReadability 综合可读性分析
func AnalyzeReadability(text string) ReadabilityReport {
	words := wordPattern.FindAllString(text, -1)
	wordCount := len(words)
	sentenceCount := CountSentences(text)

	syllableCount := 0
	for _, w := range words {
		syllableCount += CountSyllables(w)
	}

	var ease, grade float64
	if wordCount > 0 && sentenceCount > 0 {
		avgSyllables := float64(syllableCount) / float64(wordCount)
		avgWords := float64(wordCount) / float64(sentenceCount)

		ease = 206.835 - 1.015*avgWords - 84.6*avgSyllables
		ease = math.Max(0, math.Min(100, ease))

		grade = 0.39*avgWords + 11.8*avgSyllables - 15.59
		grade = math.Max(0, grade)
	}

	band := "advanced"
	switch {
	case grade <= 5:
		band = "beginner"
	case grade <= 8:
		band = "intermediate"
	}

	// 按学习者 150 wpm 估算阅读时长
	minutes := int(math.Round(float64(wordCount) / 150))
	if minutes < 1 {
		minutes = 1
	}

	return ReadabilityReport{
		WordCount:        wordCount,
		SentenceCount:    sentenceCount,
		SyllableCount:    syllableCount,
		FleschEase:       math.Round(ease*10) / 10,
		FleschKincaid:    math.Round(grade*10) / 10,
		Band:             band,
		EstimatedMinutes: minutes,
	}
}
