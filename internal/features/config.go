package features

import (
	"fmt"
	"slices"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// Config is the immutable feature configuration shared by the training and
// prediction paths.
type Config struct {
	Window  int   // rolling window size in observed days
	Lags    []int // lag depths in observed rows
	Workers int   // parallel customer partitions in TrainingBatch
}

// DefaultConfig is a 3-day window with lags 1 and 2.
func DefaultConfig() Config {
	return Config{Window: 3, Lags: []int{1, 2}, Workers: 4}
}

// Validate rejects windows or lags below 1 and repeated lag depths.
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("features: %w: window %d < 1", domain.ErrConfig, c.Window)
	}
	if len(c.Lags) == 0 {
		return fmt.Errorf("features: %w: no lag depths", domain.ErrConfig)
	}
	seen := make(map[int]bool, len(c.Lags))
	for _, l := range c.Lags {
		if l < 1 {
			return fmt.Errorf("features: %w: lag %d < 1", domain.ErrConfig, l)
		}
		if seen[l] {
			return fmt.Errorf("features: %w: lag %d repeated", domain.ErrConfig, l)
		}
		seen[l] = true
	}
	return nil
}

// depth is how many prior rows any feature can look back.
func (c Config) depth() int {
	return max(c.Window, slices.Max(c.Lags))
}

func (c Config) clone() Config {
	c.Lags = slices.Clone(c.Lags)
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}
