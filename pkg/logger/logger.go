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

// Package logger builds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

func init() {
	// Users of our logging will always adhere to these global settings:
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldInteger = false
	zerolog.DurationFieldUnit = time.Second
}

// Log outputs.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// Config configures the logger.
type Config struct { //nolint:govet // Don't care about alignment.
	Level   string `yaml:"level" json:"level" env:"LEVEL" doc:"Log level. One of: trace, debug, info, warn, error, fatal, panic"`
	Console bool   `yaml:"console" json:"console" env:"CONSOLE" doc:"Logging includes terminal colors"`
	Output  string `yaml:"output" json:"output" env:"OUTPUT" doc:"Where logs go. One of: stdout, stderr"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Level:   zerolog.InfoLevel.String(),
		Console: false,
		Output:  OutputStderr,
	}
}

func outputFile(c *Config) *os.File {
	switch c.Output {
	case OutputStdout:
		return os.Stdout
	case OutputStderr, "":
		return os.Stderr
	}

	panic(fmt.Sprintf("invalid log output %q", c.Output))
}

// termOut wraps out in a ConsoleWriter if it is a tty or console is
// configured. Otherwise we assume we're running under docker and log JSON.
func termOut(c *Config, out *os.File) io.Writer {
	if c.Console || isatty.IsTerminal(out.Fd()) {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02T15:04:05.000000", // Omitting timezone on console.
		}
	}

	return out
}

// New returns a new logger as described by the config.
// Panics in case of an invalid configuration.
func New(c *Config) zerolog.Logger {
	return NewWithWriter(c, termOut(c, outputFile(c)))
}

// NewWithWriter is New with an explicit destination.
// Panics in case of an invalid level.
func NewWithWriter(c *Config, w io.Writer) zerolog.Logger {
	zLevel, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		panic(err.Error())
	}

	return zerolog.New(w).
		Level(zLevel).
		With().Timestamp().Caller().
		Logger()
}
