package coref

import (
	"fmt"
	"math"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

// HeartbeatFunc is a callback invoked between resolution stages to signal
// liveness. The argument names the stage about to start.
type HeartbeatFunc func(stage string)

// Defaults for candidate generation and linking.
const (
	DefaultMaxMentionDistance                = 50
	DefaultMaxMentionDistanceWithStringMatch = 5000
	DefaultThreshold                         = 0.35
)

// Config holds configuration for a Resolver.
type Config struct {
	// Thresholds gates links by pronominality of the pair.
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`

	// Candidate windows, in mentions. Zero disables a window, so a zero
	// MaxMentionDistance leaves only string-match candidates. Start from
	// DefaultConfig to get the usual windows.
	MaxMentionDistance                int `json:"max_mention_distance" yaml:"max_mention_distance"`
	MaxMentionDistanceWithStringMatch int `json:"max_mention_distance_with_string_match" yaml:"max_mention_distance_with_string_match"`

	// StrictBestFirst stops considering an anaphor after its top-ranked pair
	// even when that pair fails its threshold.
	StrictBestFirst bool `json:"strict_best_first" yaml:"strict_best_first"`

	// ScorerTotal declares the scorer total: any scorer error aborts the run
	// instead of excluding the pair.
	ScorerTotal bool `json:"scorer_total" yaml:"scorer_total"`

	// Heartbeat is called before each stage.
	Heartbeat HeartbeatFunc `json:"-" yaml:"-"`
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Thresholds:                        UniformThresholds(DefaultThreshold),
		MaxMentionDistance:                DefaultMaxMentionDistance,
		MaxMentionDistanceWithStringMatch: DefaultMaxMentionDistanceWithStringMatch,
	}
}

// Validate rejects impossible values.
func (c *Config) Validate() error {
	if c.MaxMentionDistance < 0 || c.MaxMentionDistanceWithStringMatch < 0 {
		return fmt.Errorf("mention distances must not be negative: %w", corerrors.ErrValidation)
	}
	for _, v := range c.Thresholds.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("threshold %v is not finite: %w", v, corerrors.ErrValidation)
		}
	}
	return nil
}
