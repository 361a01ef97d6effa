package collect

import (
	"strings"
	"unicode"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
)

// Difficulty keyword tables. Matching runs over title + excerpt; the
// first tier with a hit wins, scanning advanced first so "深度解析" beats
// a stray "入门" in the same text.
var (
	advancedKeywords = []string{
		"高级", "深度", "深入", "专业", "复杂", "架构", "协定", "条约", "并购", "上场",
	}
	beginnerKeywords = []string{
		"入门", "基础", "初步", "什么是", "是什么", "指南", "速查", "常见问题", "怎么办", "如何开始",
	}
)

// ClassifyDifficulty assigns a difficulty label to imported content by
// keyword matching. Unmatched content defaults to intermediate.
func ClassifyDifficulty(title, excerpt string) string {
	text := title + " " + excerpt
	for _, kw := range advancedKeywords {
		if strings.Contains(text, kw) {
			return "高级"
		}
	}
	for _, kw := range beginnerKeywords {
		if strings.Contains(text, kw) {
			return "入门"
		}
	}
	return "中级"
}

// Reading-speed assumptions: CJK text is read character by character,
// Latin text word by word.
const (
	cjkCharsPerMinute = 400
	wordsPerMinute    = 200
)

// EstimateReadingTime returns a reading time in whole minutes, minimum 1.
func EstimateReadingTime(text string) int {
	var cjk, latinWords int
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			cjk++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				latinWords++
				inWord = true
			}
		default:
			inWord = false
		}
	}

	minutes := cjk/cjkCharsPerMinute + latinWords/wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Excerpt truncates content to a card-sized excerpt on a rune boundary.
func Excerpt(content string, maxRunes int) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes]) + "…"
}

// ArticleType guesses article vs FAQ from the title shape.
func ArticleType(title string) string {
	if strings.ContainsAny(title, "?？") || strings.Contains(title, "常见问题") {
		return catalog.TypeFAQ
	}
	return catalog.TypeArticle
}
