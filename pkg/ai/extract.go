package ai

import (
	"strings"
	"unicode"
)

const maxExtracted = 3

var (
	insightKeywords = []string{
		"網路正常", "性能良好", "運行穩定", "健康狀況", "異常", "延遲", "問題", "建議", "優化",
		"healthy", "stable", "anomal", "latency", "delay", "issue", "recommend", "optimi",
	}
	recommendationHeadings = []string{"建議", "行動", "recommendation"}
	bulletPrefixes         = []string{"-", "•", "1.", "2.", "3."}
)

// ExtractInsights returns up to three lines mentioning a health keyword.
func ExtractInsights(analysis string) []string {
	insights := []string{}
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if containsAny(strings.ToLower(line), insightKeywords) {
			insights = append(insights, line)
			if len(insights) == maxExtracted {
				break
			}
		}
	}
	return insights
}

// ExtractRecommendations returns up to three bullet lines following a
// recommendations heading. A non-bullet line after the first bullet ends
// the section.
func ExtractRecommendations(analysis string) []string {
	recs := []string{}
	inSection := false
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(line)
		if containsAny(strings.ToLower(line), recommendationHeadings) {
			inSection = true
			continue
		}
		if !inSection || line == "" {
			continue
		}
		if hasAnyPrefix(line, bulletPrefixes) {
			recs = append(recs, line)
			if len(recs) == maxExtracted {
				break
			}
			continue
		}
		if r := []rune(line)[0]; !unicode.IsDigit(r) && len(recs) > 0 {
			break
		}
	}
	return recs
}

// Confidence rates how much the analysis can be trusted given its input:
// 0.5 base, +0.2 live tick, +0.2 known non-abnormal health, +0.1 duration.
func Confidence(data *NetworkData) float64 {
	if data == nil {
		return 0.5
	}
	tenths := 5
	if data.Tick > 0 {
		tenths += 2
	}
	if data.Health.Overall != "" && !data.abnormal() {
		tenths += 2
	}
	if data.Duration > 0 {
		tenths++
	}
	return float64(min(tenths, 10)) / 10
}

func DataQuality(data *NetworkData) string {
	if data.Available() {
		return "good"
	}
	return "poor"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
