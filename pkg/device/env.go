package device

import (
	"os"

	"github.com/rs/zerolog"
)

type configSource struct {
	envKey  string
	literal string
	isEnv   bool
}

// EnvBuilder resolves a DeviceConfig from a chain of sources. Nothing is read
// until Build; the first present source wins, and a malformed value is an
// error rather than a reason to fall through.
type EnvBuilder struct {
	sources  []configSource
	fallback *DeviceConfig
	logger   zerolog.Logger
}

// DeviceConfigFromEnv starts a chain with the environment variable key.
func DeviceConfigFromEnv(key string) *EnvBuilder {
	return &EnvBuilder{
		sources: []configSource{{envKey: key, isEnv: true}},
		logger:  zerolog.Nop(),
	}
}

func (e *EnvBuilder) WithLogger(logger zerolog.Logger) *EnvBuilder {
	e.logger = logger
	return e
}

// OrEnv falls back to another environment variable.
func (e *EnvBuilder) OrEnv(key string) *EnvBuilder {
	e.sources = append(e.sources, configSource{envKey: key, isEnv: true})
	return e
}

// OrTry falls back to a literal when item is not nil.
func (e *EnvBuilder) OrTry(item *string) *EnvBuilder {
	if item != nil {
		e.sources = append(e.sources, configSource{literal: *item})
	}
	return e
}

// Or sets the config used when no source is present.
func (e *EnvBuilder) Or(fallback DeviceConfig) *EnvBuilder {
	e.fallback = &fallback
	return e
}

func (e *EnvBuilder) OrDefault() *EnvBuilder {
	return e.Or(DefaultDeviceConfig())
}

func (e *EnvBuilder) Build() (DeviceConfig, error) {
	for _, source := range e.sources {
		if !source.isEnv {
			e.logger.Info().Str("config", source.literal).Msg("using explicit config literal")
			return ParseDeviceConfig(source.literal)
		}

		value, ok := os.LookupEnv(source.envKey)
		if !ok {
			continue
		}
		e.logger.Info().Str("config", value).Str("env", source.envKey).Msg("using config from environment variable")
		return ParseDeviceConfig(value)
	}

	if e.fallback == nil {
		return DeviceConfig{}, parseError("", "fallback device config is not set")
	}
	return *e.fallback, nil
}
