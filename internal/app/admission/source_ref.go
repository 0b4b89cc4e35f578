package admission

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/videowall/internal/domain/source"
)

// SourceRefConfig represents the configuration for SourceRefFilter.
type SourceRefConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions" default:"[\"mp4\",\"webm\",\"mov\",\"mkv\"]" validate:"min=1,dive,required"`
	RemoteIDPattern   string   `yaml:"remote_id_pattern" mapstructure:"remote_id_pattern" default:"^[A-Za-z0-9_-]{11}$" validate:"required"`
}

// SourceRefFilter checks that a ref is playable by the tiles of its kind.
type SourceRefFilter struct {
	extensions map[string]struct{}
	remoteID   *regexp.Regexp
}

const defaultRemoteIDPattern = `^[A-Za-z0-9_-]{11}$`

// NewSourceRefFilter creates a source ref filter with default settings.
// ValidateConfig replaces them.
func NewSourceRefFilter() *SourceRefFilter {
	return &SourceRefFilter{
		extensions: map[string]struct{}{"mp4": {}, "webm": {}, "mov": {}, "mkv": {}},
		remoteID:   regexp.MustCompile(defaultRemoteIDPattern),
	}
}

func (f *SourceRefFilter) Name() string {
	return "source_ref_filter"
}

func (f *SourceRefFilter) Description() string {
	return "Rejects local files with unsupported extensions and malformed remote video ids"
}

func (f *SourceRefFilter) ReturnCodes() []string {
	return []string{"invalid_kind", "unsupported_extension", "invalid_remote_id"}
}

func (f *SourceRefFilter) ValidateConfig(settings map[string]any) error {
	var config SourceRefConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	re, err := regexp.Compile(config.RemoteIDPattern)
	if err != nil {
		return errors.Wrapf(err, "invalid remote_id_pattern %q", config.RemoteIDPattern)
	}

	exts := make(map[string]struct{}, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	f.extensions = exts
	f.remoteID = re
	zlog.Debug().Msgf("source ref filter config: %+v", config)
	return nil
}

func (f *SourceRefFilter) Check(_ context.Context, src source.Source) Result {
	switch src.Kind {
	case source.KindLocal:
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(refPath(src.Ref)), "."))
		if _, ok := f.extensions[ext]; !ok {
			return Reject("unsupported_extension")
		}
	case source.KindRemote:
		if !f.remoteID.MatchString(src.Ref) {
			return Reject("invalid_remote_id")
		}
	default:
		return Reject("invalid_kind")
	}
	return Accept()
}

// refPath strips a query string or fragment from URL refs.
func refPath(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

func init() {
	Register("source_ref_filter", func(Deps) Filter {
		return NewSourceRefFilter()
	})
}
