// SPDX-License-Identifier: EPL-2.0

// Package config loads the settings shared by the decoder tools from
// defaults, an optional YAML file, GAPLESS_ environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ik5/gapless/audio"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load, such as
// GAPLESS_BUFFERTIME or GAPLESS_LOG_LEVEL.
const EnvPrefix = "GAPLESS"

type Config struct {
	// BufferTime is the decoded length of one buffer.
	BufferTime time.Duration `mapstructure:"buffertime"`
	// SampleRate and Channels are the output format of every session.
	SampleRate int `mapstructure:"samplerate"`
	Channels   int `mapstructure:"channels"`

	// PoolCeiling is the number of decoder or resampler entries per pool
	// key above which a leak is reported.
	PoolCeiling      int           `mapstructure:"poolceiling"`
	MetadataCacheTTL time.Duration `mapstructure:"metadatacachettl"`
	ReplyBuffer      int           `mapstructure:"replybuffer"`

	Effects []audio.EffectSpec `mapstructure:"effects"`

	Log LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn or error
	Format string `mapstructure:"format"` // text or json
}

// flagKeys maps the flags declared by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"buffer-time": "buffertime",
	"sample-rate": "samplerate",
	"channels":    "channels",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// RegisterFlags declares the flags Load binds.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Duration("buffer-time", DefaultBufferTime, "decoded length of one buffer")
	fs.Int("sample-rate", DefaultSampleRate, "output sample rate")
	fs.Int("channels", DefaultChannels, "output channel count (1-5)")
	fs.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", DefaultLogFormat, "log format: text, json")
}

// Load reads the configuration. path may be empty; flags may be nil or
// lack some of the flags of RegisterFlags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
