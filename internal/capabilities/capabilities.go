// Package capabilities declares the tools served by birdwatch and binds each
// one to its handler. Handlers receive the X API client by injection so tests
// can substitute a fake.
package capabilities

import (
	"time"

	"github.com/alucardeht/birdwatch-mcp/internal/sentiment"
	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/internal/twitter"
)

type Deps struct {
	Client   twitter.Client
	Analyzer *sentiment.Analyzer
	Started  time.Time
	Circuit  CircuitSource
	Cache    CacheSource
}

// All returns every capability in the order tools/list publishes them.
func All(deps Deps) []tools.Capability {
	analyzer := deps.Analyzer
	if analyzer == nil {
		analyzer = sentiment.Default()
	}

	started := deps.Started
	if started.IsZero() {
		started = time.Now()
	}

	return []tools.Capability{
		SearchTweets(deps.Client),
		UserInfo(deps.Client),
		UserTweets(deps.Client),
		TrendingTopics(),
		TweetSentiment(analyzer),
		Health(started, deps.Circuit, deps.Cache),
	}
}
