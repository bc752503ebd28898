// SPDX-License-Identifier: EPL-2.0

package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ik5/gapless/audio"
)

const (
	minSampleRate = 8000
	maxSampleRate = 192000
	maxBufferTime = 10 * time.Second
)

// ValidationError collects every problem found by Validate. It matches
// audio.ErrInvalidConfig.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(ve.Errors, "; ")
}

func (ve ValidationError) Unwrap() error { return audio.ErrInvalidConfig }

func (c *Config) Validate() error {
	ve := ValidationError{}
	add := func(format string, args ...any) {
		ve.Errors = append(ve.Errors, fmt.Sprintf(format, args...))
	}

	if c.BufferTime <= 0 || c.BufferTime > maxBufferTime {
		add("buffer time %s outside (0, %s]", c.BufferTime, maxBufferTime)
	}
	if c.SampleRate < minSampleRate || c.SampleRate > maxSampleRate {
		add("sample rate %d outside [%d, %d]", c.SampleRate, minSampleRate, maxSampleRate)
	}
	if c.Channels < 1 || c.Channels > audio.MaxMixerChannels {
		add("channels %d outside [1, %d]", c.Channels, audio.MaxMixerChannels)
	}
	if c.PoolCeiling < 1 {
		add("pool ceiling %d must be positive", c.PoolCeiling)
	}
	if c.MetadataCacheTTL <= 0 {
		add("metadata cache ttl %s must be positive", c.MetadataCacheTTL)
	}
	if c.ReplyBuffer < 1 {
		add("reply buffer %d must be positive", c.ReplyBuffer)
	}
	if _, err := audio.BuildEffects(c.Effects); err != nil {
		add("effects: %v", err)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		add("unknown log level %q", c.Log.Level)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Log.Format)) {
		add("unknown log format %q", c.Log.Format)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
