package ai

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Quality string

const (
	QualityGood     Quality = "good"
	QualityModerate Quality = "moderate"
	QualityPoor     Quality = "poor"
)

// Score is the heuristic accuracy rating of a model answer.
type Score struct {
	Accuracy int      `json:"accuracy_score"`
	Quality  Quality  `json:"quality"`
	Feedback []string `json:"feedback"`
}

// MinAcceptableScore is the accuracy below which an answer is replaced by
// a fallback.
const MinAcceptableScore = 40

const (
	baseScore       = 50
	lengthBonus     = 10
	lengthThreshold = 20
	digitBonus      = 15
	conceptBonus    = 5
	conceptCap      = 25
	conclusionBonus = 10
	errorPenalty    = 15
	minScore        = 30
	maxScore        = 100
)

var (
	keyConcepts = []string{
		"tick", "epoch", "duration", "qubic", "網路", "network",
		"健康", "health", "狀況", "status", "分析", "analysis",
	}
	conclusionWords = []string{"建議", "總結", "結論", "recommend", "conclusion", "分析", "評估"}
	// wrongTerms mark answers that confused Qubic with unrelated products.
	wrongTerms = []string{
		"netcat", "netnat", "移動設備", "mobile device",
		"比特幣", "bitcoin", "以太坊", "ethereum", "chatgpt", "openai",
	}
)

func ScoreResponse(response string) Score {
	lower := strings.ToLower(response)
	score := baseScore
	var feedback []string

	if utf8.RuneCountInString(response) >= lengthThreshold {
		score += lengthBonus
		feedback = append(feedback, "reasonable length")
	}

	if strings.IndexFunc(response, unicode.IsDigit) >= 0 {
		score += digitBonus
		feedback = append(feedback, "contains figures")
	}

	found := 0
	for _, c := range keyConcepts {
		if strings.Contains(lower, c) {
			found++
		}
	}
	if found > 0 {
		score += min(found*conceptBonus, conceptCap)
		feedback = append(feedback, fmt.Sprintf("domain concepts: %d", found))
	}

	if containsAny(lower, conclusionWords) {
		score += conclusionBonus
		feedback = append(feedback, "has conclusion or recommendation")
	}

	var wrong []string
	for _, t := range wrongTerms {
		if strings.Contains(lower, t) {
			wrong = append(wrong, t)
		}
	}
	if len(wrong) > 0 {
		score -= len(wrong) * errorPenalty
		feedback = append(feedback, "unrelated terms: "+strings.Join(wrong, ", "))
	}

	score = max(minScore, min(maxScore, score))
	return Score{Accuracy: score, Quality: qualityOf(score), Feedback: feedback}
}

func qualityOf(score int) Quality {
	switch {
	case score >= 70:
		return QualityGood
	case score >= 50:
		return QualityModerate
	default:
		return QualityPoor
	}
}
