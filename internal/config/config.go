// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides jiffy configuration loading and validation.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is a jiffy configuration. Unset fields take the command's
// default values.
type Config struct {
	// Quality is a quality preset name or a value in (0, 1].
	Quality *string `json:"quality,omitempty" toml:"quality"`
	// MemoryMB is the memory budget below which all display
	// slots are decoded ahead of playback.
	MemoryMB *int `json:"memory_mb,omitempty" toml:"memory_mb"`
	// Rate is the maximum display rate in frames per second.
	Rate    *float64 `json:"rate,omitempty" toml:"rate"`
	Workers *int     `json:"workers,omitempty" toml:"workers"`
	// Render is the frame renderer; "iterm2" or "none".
	Render *string `json:"render,omitempty" toml:"render"`
	// Width is the rendered width in terminal cells.
	Width    *int        `json:"width,omitempty" toml:"width"`
	LogLevel *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	// LogFormat is the log record format; "json" or "text".
	LogFormat *string `json:"log_format,omitempty" toml:"log_format"`
	AddSource *bool   `json:"log_add_source,omitempty" toml:"log_add_source"`
}

// Schema is the CUE schema for a valid configuration.
const Schema = `
{
	quality?:        _#quality
	memory_mb?:      int & >=0
	rate?:           number & >0 & <=1000
	workers?:        int & >=1
	render?:         "iterm2" | "none"
	width?:          int & >=0
	log_level?:      _#log_level
	log_format?:     "json" | "text"
	log_add_source?: bool
}

_#quality: "full" | "high" | "medium" | "low" | =~"^(?:0?\\.[0-9]*[1-9][0-9]*|1(?:\\.0*)?)$"

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
`

// InvalidError is returned when a configuration does not satisfy Schema.
type InvalidError struct {
	// Paths holds the invalid configuration paths.
	Paths [][]string
	Err   error
}

func (e *InvalidError) Error() string {
	paths := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		paths[i] = strings.Join(p, ".")
	}
	return fmt.Sprintf("invalid configuration %s: %v", strings.Join(paths, ", "), e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

// Load returns the configuration held in the TOML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse returns the configuration held in the TOML data in b. Unknown keys
// and values not satisfying Schema are errors.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	paths, err := Validate(Schema, &cfg)
	if err != nil {
		return nil, &InvalidError{Paths: paths, Err: err}
	}
	return &cfg, nil
}

// Apply sets flags in fs that were not set on the command line to the
// corresponding values held by c. Values for flags not defined in fs are
// ignored.
func (c *Config) Apply(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	vals := c.flags()
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	slices.Sort(names)
	var errs []error
	for _, name := range names {
		if set[name] || fs.Lookup(name) == nil {
			continue
		}
		err := fs.Set(name, vals[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// flags returns the flag values corresponding to the set fields of c.
func (c *Config) flags() map[string]string {
	vals := make(map[string]string)
	if c.Quality != nil {
		vals["quality"] = *c.Quality
	}
	if c.MemoryMB != nil {
		vals["memory"] = strconv.Itoa(*c.MemoryMB)
	}
	if c.Rate != nil {
		vals["rate"] = strconv.FormatFloat(*c.Rate, 'g', -1, 64)
	}
	if c.Workers != nil {
		vals["workers"] = strconv.Itoa(*c.Workers)
	}
	if c.Render != nil {
		vals["render"] = *c.Render
	}
	if c.Width != nil {
		vals["width"] = strconv.Itoa(*c.Width)
	}
	if c.LogLevel != nil {
		vals["log"] = strings.ToLower(c.LogLevel.String())
	}
	if c.LogFormat != nil {
		vals["log_format"] = *c.LogFormat
	}
	if c.AddSource != nil {
		vals["lines"] = strconv.FormatBool(*c.AddSource)
	}
	return vals
}
