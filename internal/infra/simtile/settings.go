// Package simtile provides simulated playback units driven by the wall clock.
// Each unit runs on its own slightly skewed clock so the drift engines have
// something to correct.
package simtile

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Settings configures the simulated units.
type Settings struct {
	BufferDelayMs  int     `yaml:"buffer_delay_ms" mapstructure:"buffer_delay_ms" default:"400" validate:"gte=0,lte=60000"`
	BufferJitterMs int     `yaml:"buffer_jitter_ms" mapstructure:"buffer_jitter_ms" default:"600" validate:"gte=0,lte=60000"`
	InitDelayMs    int     `yaml:"init_delay_ms" mapstructure:"init_delay_ms" default:"300" validate:"gte=0,lte=60000"`
	MaxSkewPPM     int     `yaml:"max_skew_ppm" mapstructure:"max_skew_ppm" default:"2000" validate:"gte=0,lte=100000"`
	DurationSec    float64 `yaml:"duration_sec" mapstructure:"duration_sec" default:"120" validate:"gt=0"`
	LoopLocal      bool    `yaml:"loop_local" mapstructure:"loop_local"`
	Seed           int64   `yaml:"seed" mapstructure:"seed" default:"1"`
}

// DecodeSettings decodes a settings map over the defaults and validates it.
// Keys present in raw win, including explicit zeros.
func DecodeSettings(raw map[string]any) (Settings, error) {
	var s Settings
	if err := defaults.Set(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to set defaults")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Settings{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode simulation settings")
	}

	if err := validator.New().Struct(s); err != nil {
		return Settings{}, errors.Wrap(err, "simulation settings validation failed")
	}
	return s, nil
}

func (s Settings) bufferDelay() time.Duration {
	return time.Duration(s.BufferDelayMs) * time.Millisecond
}

func (s Settings) initDelay() time.Duration {
	return time.Duration(s.InitDelayMs) * time.Millisecond
}
