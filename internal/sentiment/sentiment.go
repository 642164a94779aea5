// Package sentiment scores short texts by counting known positive and negative
// keywords. A keyword counts once if it appears anywhere in the text,
// including inside longer words.
package sentiment

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Label string

const (
	Positive Label = "Positive"
	Negative Label = "Negative"
	Neutral  Label = "Neutral"
)

var (
	DefaultPositiveWords = []string{
		"好", "棒", "喜欢", "爱", "优秀", "完美", "太棒了",
		"good", "great", "love", "awesome", "amazing", "excellent", "happy", "wonderful",
	}
	DefaultNegativeWords = []string{
		"坏", "差", "讨厌", "恨", "糟糕", "失望",
		"bad", "terrible", "hate", "awful", "horrible", "sad", "angry", "disappointed",
	}
)

type Analysis struct {
	Label    Label    `json:"sentiment"`
	Score    int      `json:"score"`
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

type Analyzer struct {
	positive []string
	negative []string
}

func NewAnalyzer(positive, negative []string) *Analyzer {
	return &Analyzer{
		positive: normalizeAll(positive),
		negative: normalizeAll(negative),
	}
}

func Default() *Analyzer {
	return NewAnalyzer(DefaultPositiveWords, DefaultNegativeWords)
}

// Analyze is safe for concurrent use.
func (a *Analyzer) Analyze(text string) Analysis {
	folded := normalize(text)

	result := Analysis{
		Positive: []string{},
		Negative: []string{},
	}

	for _, word := range a.positive {
		if strings.Contains(folded, word) {
			result.Score++
			result.Positive = append(result.Positive, word)
		}
	}

	for _, word := range a.negative {
		if strings.Contains(folded, word) {
			result.Score--
			result.Negative = append(result.Negative, word)
		}
	}

	switch {
	case result.Score > 0:
		result.Label = Positive
	case result.Score < 0:
		result.Label = Negative
	default:
		result.Label = Neutral
	}

	return result
}

// normalize maps compatibility forms (full-width latin, ligatures) to their
// canonical form and case-folds. Casers hold state, so one is made per call.
func normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = normalize(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
