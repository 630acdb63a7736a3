// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg provides functions for locating cross-platform configuration
// files.
package xdg

import (
	"os"
	"path/filepath"
	"syscall"
)

// Config returns the path to the named file found first in the list of
// config directories obtained from ConfigHome, and ConfigDirs if local is
// false. If no file is found Config returns ENOENT.
func Config(name string, local bool) (string, error) {
	dirs := make([]string, 0, 4)
	if home, ok := ConfigHome(); ok {
		dirs = append(dirs, home)
	}
	if !local {
		if list, ok := ConfigDirs(); ok {
			dirs = append(dirs, filepath.SplitList(list)...)
		}
	}
	return find(name, dirs)
}

// ConfigHome returns the path corresponding to XDG_CONFIG_HOME.
func ConfigHome() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
}

// ConfigDirs returns the path list corresponding to XDG_CONFIG_DIRS.
func ConfigDirs() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_DIRS, def_XDG_CONFIG_DIRS, "")
}

// find returns the path to the named file found first in dirs.
func find(name string, dirs []string) (string, error) {
	for _, base := range dirs {
		path := filepath.Join(base, name)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
	}
	return "", syscall.ENOENT
}

// envOrDefault return the path or path list corresponding to the provided
// key and default. If home is empty or the default is absolute, the default
// is returned unaltered, otherwise the default is returned relative to the
// path held in the home environment variable.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		if val, ok := os.LookupEnv(key); ok {
			return val, true
		}
	}
	switch {
	case def == "":
		return "", false
	case home == "", filepath.IsAbs(def):
		return def, true
	}
	base, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(base, def), true
}
