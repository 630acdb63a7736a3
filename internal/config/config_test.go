// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wader/osleaktest"
)

func TestParse(t *testing.T) {
	for _, test := range []struct {
		name      string
		data      string
		want      *Config
		wantPaths [][]string
		wantErr   bool
	}{
		{
			name: "valid",
			data: `
quality = "low"
memory_mb = 5
rate = 30.0
render = "none"
log_level = "debug"
log_format = "text"
`,
			want: &Config{
				Quality:   ptr("low"),
				MemoryMB:  ptr(5),
				Rate:      ptr(30.0),
				Render:    ptr("none"),
				LogLevel:  ptr(slog.LevelDebug),
				LogFormat: ptr("text"),
			},
		},
		{
			name:    "unknown_key",
			data:    `speed = 2`,
			wantErr: true,
		},
		{
			name:    "syntax",
			data:    `quality = `,
			wantErr: true,
		},
		{
			name:      "invalid",
			data:      `render = "sixel"`,
			wantPaths: [][]string{{"render"}},
			wantErr:   true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := Parse([]byte(test.data))
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: got:%v want error:%t", err, test.wantErr)
			}
			if err != nil {
				var ierr *InvalidError
				if errors.As(err, &ierr) {
					if !cmp.Equal(test.wantPaths, ierr.Paths) {
						t.Errorf("unexpected paths:\n--- want:\n+++ got:\n%s", cmp.Diff(test.wantPaths, ierr.Paths))
					}
				} else if test.wantPaths != nil {
					t.Errorf("expected validation error: %v", err)
				}
				return
			}
			if !cmp.Equal(test.want, got) {
				t.Errorf("unexpected config:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	// Registered before the temporary directory so that it
	// is checked after the directory has been removed.
	t.Cleanup(osleaktest.Check(t))

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte("workers = 2\nlog_add_source = true\n"), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	want := &Config{Workers: ptr(2), AddSource: ptr(true)}
	if !cmp.Equal(want, got) {
		t.Errorf("unexpected config:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}

	_, err = Load(filepath.Join(dir, "missing.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected error for missing file: %v", err)
	}
}

func TestApply(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	quality := fs.String("quality", "full", "")
	memory := fs.Int("memory", 20, "")
	rate := fs.Float64("rate", 60, "")
	logging := fs.String("log", "info", "")
	lines := fs.Bool("lines", false, "")
	format := fs.String("log_format", "json", "")
	err := fs.Parse([]string{"-memory", "3"})
	if err != nil {
		t.Fatalf("unexpected error parsing flags: %v", err)
	}

	cfg := &Config{
		Quality:   ptr("low"),
		MemoryMB:  ptr(50),
		LogLevel:  ptr(slog.LevelWarn),
		AddSource: ptr(true),
		LogFormat: ptr("text"),
		Width:     ptr(10), // No width flag.
	}
	err = cfg.Apply(fs)
	if err != nil {
		t.Fatalf("unexpected error applying config: %v", err)
	}
	if *quality != "low" {
		t.Errorf("unexpected quality: %q", *quality)
	}
	if *memory != 3 {
		t.Errorf("command line memory overridden: %d", *memory)
	}
	if *rate != 60 {
		t.Errorf("unset rate altered: %v", *rate)
	}
	if *logging != "warn" {
		t.Errorf("unexpected log level: %q", *logging)
	}
	if !*lines {
		t.Error("lines not set")
	}
	if *format != "text" {
		t.Errorf("unexpected log format: %q", *format)
	}
}
