package capabilities

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/internal/twitter"
)

type CircuitSource interface {
	CircuitStats() twitter.CircuitStats
}

type CacheSource interface {
	CacheStats(ctx context.Context) twitter.CacheStats
}

type HealthReport struct {
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Upstream      *twitter.CircuitStats `json:"upstream,omitempty"`
	Cache         *twitter.CacheStats   `json:"cache,omitempty"`
}

// Health reports server status. Either source may be nil.
func Health(started time.Time, circuit CircuitSource, cache CacheSource) tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:        "health",
			Title:       "Server Health",
			Description: "Check server health: uptime, upstream API circuit state, and user cache statistics",
			Schema:      tools.Schema{},
			Annotations: tools.LocalAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			report := HealthReport{
				Status:        "healthy",
				UptimeSeconds: int64(time.Since(started).Seconds()),
			}

			if circuit != nil {
				stats := circuit.CircuitStats()
				report.Upstream = &stats
				if stats.State == twitter.CircuitOpen {
					report.Status = "degraded"
				}
			}

			if cache != nil {
				stats := cache.CacheStats(ctx)
				report.Cache = &stats
			}

			return report, nil
		},
	}
}
