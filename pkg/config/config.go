// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads executable configuration from the environment and a
// YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// pathEnv, with the env prefix prepended, names an alternative config file.
const pathEnv = "CONFIG_FILE"

// NoConfigError indicates that we couldn't find a config file.
// This is usually OK and should be treated as a warning.
type NoConfigError struct {
	Path string
}

func (e *NoConfigError) Error() string {
	return "cannot find config file [" + e.Path + "], continuing with defaults"
}

// Path returns the config file to load: $<envPrefix>CONFIG_FILE if set,
// otherwise defaultPath.
func Path(defaultPath string, envPrefix string) string {
	if p := os.Getenv(envPrefix + pathEnv); p != "" {
		return p
	}

	return defaultPath
}

// Parse decodes YAML from r over the values already in out. Unknown keys
// are an error, so typos don't silently fall back to defaults. An empty
// document leaves out untouched.
func Parse(r io.Reader, out interface{}) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err //nolint:wrapcheck // Callers add the file name.
	}

	return nil
}

// parseFile parses the config file at 'path' and overwrites defaults in 'out'.
func parseFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &NoConfigError{path}
		}

		return fmt.Errorf("failed to open config file [%s]: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Don't care about error

	if err := Parse(f, out); err != nil {
		return fmt.Errorf("failed to parse config file [%s]: %w", path, err)
	}

	return nil
}

// parseEnv parses the environment and overwrites defaults in 'out'.
func parseEnv(envPrefix string, out interface{}) error {
	if err := env.Parse(out, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("config failed to parse environment: %w", err)
	}

	return nil
}

// Init initializes 'out' based on the environment and a config file.
// Environment variables are applied first, then the YAML config file,
// overriding anything from the environment.
//
// The 'envPrefix' is prefixed to the names of any environment variables
// that we look for, so e.g., if 'envPrefix' is "APP_" and there's a struct
// tag saying $HTTP_PORT, the result will come from $APP_HTTP_PORT.
//
// A missing file is reported as *NoConfigError after the environment has
// been applied; callers usually log it and carry on.
func Init(path string, envPrefix string, out interface{}) error {
	if err := parseEnv(envPrefix, out); err != nil {
		return err
	}

	return parseFile(path, out)
}

// Dump writes cfg as YAML, for showing the effective configuration.
func Dump(w io.Writer, cfg interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return enc.Close() //nolint:wrapcheck // Encoder flush only.
}
