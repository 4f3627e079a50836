package coref

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, UniformThresholds(0.35), cfg.Thresholds)
	assert.Equal(t, 50, cfg.MaxMentionDistance)
	assert.Equal(t, 5000, cfg.MaxMentionDistanceWithStringMatch)
	assert.False(t, cfg.StrictBestFirst)
	assert.False(t, cfg.ScorerTotal)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "zero windows are kept",
			cfg:  Config{Thresholds: UniformThresholds(0.5)},
			check: func(t *testing.T, cfg Config) {
				assert.Zero(t, cfg.MaxMentionDistance)
				assert.Zero(t, cfg.MaxMentionDistanceWithStringMatch)
			},
		},
		{
			name:    "negative window",
			cfg:     Config{MaxMentionDistance: -1},
			wantErr: true,
		},
		{
			name:    "negative string match window",
			cfg:     Config{MaxMentionDistanceWithStringMatch: -5},
			wantErr: true,
		},
		{
			name:    "NaN threshold",
			cfg:     Config{Thresholds: Thresholds{PronounPronoun: math.NaN()}},
			wantErr: true,
		},
		{
			name:    "infinite threshold",
			cfg:     Config{Thresholds: Thresholds{NonPronounNonPronoun: math.Inf(1)}},
			wantErr: true,
		},
		{
			name: "negative threshold is allowed",
			cfg:  Config{Thresholds: UniformThresholds(-1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, corerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, tt.cfg)
			}
		})
	}
}
