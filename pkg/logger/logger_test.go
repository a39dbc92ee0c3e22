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

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := ConfigDefault()
	cfg.Level = "warn"

	log := NewWithWriter(&cfg, &buf)
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Str("k", "v").Msg("kept")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "v", line["k"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}

func TestNewPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		cfg := ConfigDefault()
		cfg.Level = "loud"
		_ = New(&cfg)
	})

	assert.Panics(t, func() {
		cfg := ConfigDefault()
		cfg.Output = "syslog"
		_ = New(&cfg)
	})
}

func TestNewOutputs(t *testing.T) {
	t.Parallel()

	for _, output := range []string{OutputStdout, OutputStderr, ""} {
		cfg := ConfigDefault()
		cfg.Output = output

		assert.NotPanics(t, func() { _ = New(&cfg) }, output)
	}
}
