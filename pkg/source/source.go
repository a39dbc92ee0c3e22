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

// Package source reads encoded access units, one picture each, from Annex-B
// byte streams and from RTP.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

const (
	lAddr  = "addr"
	lInput = "input"
	lSeq   = "seq"
	lSize  = "size"
)

// udpScheme marks an input as an RTP/UDP listen address.
const udpScheme = "udp://"

// Source yields access units in Annex-B form. Next returns io.EOF once the
// input is exhausted.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Config selects the input.
type Config struct { //nolint:govet // Don't care about alignment.
	Input string `yaml:"input" json:"input" env:"INPUT" doc:"Annex-B file path, '-' for stdin, or udp://host:port to receive H.264 over RTP"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Input: "-",
	}
}

// IsFile reports whether input names a regular file, as opposed to stdin
// or a network address.
func IsFile(input string) bool {
	return input != "-" && !strings.HasPrefix(input, udpScheme)
}

// Open opens the input described by c for codec.
func Open(c *Config, codec engine.CodecID, logger *zerolog.Logger) (Source, error) { //nolint:ireturn // Input kind is chosen at runtime.
	switch {
	case c.Input == "-":
		return NewAnnexB(io.NopCloser(os.Stdin), codec), nil

	case strings.HasPrefix(c.Input, udpScheme):
		if codec != engine.CodecIDH264 {
			return nil, fmt.Errorf("rtp input supports h264 only, not %s", codec)
		}

		r, err := ListenRTP(strings.TrimPrefix(c.Input, udpScheme), logger)
		if err != nil {
			return nil, err
		}

		return r, nil

	default:
		f, err := os.Open(c.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to open input [%s]: %w", c.Input, err)
		}

		logger.Debug().Str(lInput, c.Input).Msg("reading annex-b file")

		return NewAnnexB(f, codec), nil
	}
}
