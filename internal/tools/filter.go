package tools

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Select keeps the capabilities whose name matches at least one glob pattern,
// preserving declaration order.
func Select(caps []Capability, patterns []string) ([]Capability, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid capability pattern: %q", pattern)
		}
	}

	selected := make([]Capability, 0, len(caps))
	for _, c := range caps {
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, c.Descriptor.Name); ok {
				selected = append(selected, c)
				break
			}
		}
	}
	return selected, nil
}
