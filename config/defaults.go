// SPDX-License-Identifier: EPL-2.0

package config

import (
	"time"

	"github.com/ik5/gapless/audio"
	"github.com/spf13/viper"
)

const (
	DefaultBufferTime  = 200 * time.Millisecond
	DefaultSampleRate  = 48000
	DefaultChannels    = 2
	DefaultPoolCeiling = 6
	DefaultReplyBuffer = 16
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("buffertime", DefaultBufferTime)
	v.SetDefault("samplerate", DefaultSampleRate)
	v.SetDefault("channels", DefaultChannels)
	v.SetDefault("poolceiling", DefaultPoolCeiling)
	v.SetDefault("metadatacachettl", audio.DefaultMetadataTTL)
	v.SetDefault("replybuffer", DefaultReplyBuffer)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// Default returns the configuration Load produces without a file,
// environment or flags.
func Default() *Config {
	return &Config{
		BufferTime:       DefaultBufferTime,
		SampleRate:       DefaultSampleRate,
		Channels:         DefaultChannels,
		PoolCeiling:      DefaultPoolCeiling,
		MetadataCacheTTL: audio.DefaultMetadataTTL,
		ReplyBuffer:      DefaultReplyBuffer,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
