package capabilities

import (
	"context"
	"encoding/json"

	"github.com/alucardeht/birdwatch-mcp/internal/sentiment"
	"github.com/alucardeht/birdwatch-mcp/internal/tools"
)

const sentimentNote = "keyword-based sentiment: counts known positive and negative words"

type SentimentReport struct {
	Text      string          `json:"text"`
	Sentiment sentiment.Label `json:"sentiment"`
	Score     int             `json:"score"`
	Positive  []string        `json:"positive"`
	Negative  []string        `json:"negative"`
	Note      string          `json:"note"`
}

func TweetSentiment(analyzer *sentiment.Analyzer) tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:        "analyze_tweet_sentiment",
			Title:       "Analyze Tweet Sentiment",
			Description: "Classify a tweet as Positive, Negative, or Neutral by counting sentiment keywords (English and Chinese)",
			Schema: tools.Schema{Params: []tools.Param{
				{
					Name:        "text",
					Type:        tools.TypeString,
					Description: "Tweet text to analyze",
					Required:    true,
				},
			}},
			Annotations: tools.LocalAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var req struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &req); err != nil {
				return nil, tools.NewInvalidArgumentsError("analyze_tweet_sentiment", err)
			}

			analysis := analyzer.Analyze(req.Text)
			return SentimentReport{
				Text:      req.Text,
				Sentiment: analysis.Label,
				Score:     analysis.Score,
				Positive:  analysis.Positive,
				Negative:  analysis.Negative,
				Note:      sentimentNote,
			}, nil
		},
	}
}
