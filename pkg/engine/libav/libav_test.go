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

package libav

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

func TestTranslateError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(astiav.ErrEagain), engine.ErrAgain)
	assert.ErrorIs(t, translateError(astiav.ErrEof), engine.ErrEOF)

	other := errors.New("boom")
	assert.Equal(t, other, translateError(other))
}

func TestPixelFormatToEngine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, engine.PixelFormatNone, pixelFormatToEngine(astiav.PixelFormatNone))
	assert.Equal(t, engine.PixelFormatNV12, pixelFormatToEngine(astiav.PixelFormatNv12))
	assert.Equal(t, engine.PixelFormatYUV420P, pixelFormatToEngine(astiav.PixelFormatYuv420P))
}

func TestEngineDecoder(t *testing.T) {
	t.Parallel()

	eng := New()

	c, err := eng.FindDecoder(engine.CodecIDH264)
	if err != nil {
		t.Skipf("ffmpeg build has no h264 decoder: %v", err)
	}

	assert.Equal(t, engine.CodecIDH264, c.ID())
	assert.NotEmpty(t, c.Name())

	for _, cfg := range c.HardwareConfigs() {
		assert.NotEmpty(t, cfg.DeviceType)
	}

	_, err = eng.FindDecoder(engine.CodecIDNone)
	require.Error(t, err)

	ctx, err := c.NewContext()
	require.NoError(t, err)

	defer ctx.Close()

	// Detaching a device that was never attached is a no-op.
	ctx.SetHardwareDevice(nil)

	require.NoError(t, ctx.Open())

	// Nothing has been sent, so the decoder has nothing to give.
	_, err = ctx.ReceiveFrame()
	require.ErrorIs(t, err, engine.ErrAgain)
}

func TestEngineHardwareDeviceTypes(t *testing.T) {
	t.Parallel()

	eng := New()

	assert.False(t, eng.HardwareDeviceTypeKnown("not-a-device"))

	_, err := eng.CreateHardwareDevice("not-a-device")
	require.Error(t, err)
}

func TestLogBridge(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := zerolog.New(&buf)
	b := &logBridge{log: log, counts: make([]int, len(squelchedPrefixes))}

	b.callback(nil, astiav.LogLevelWarning, "", "stream changed\n")
	b.callback(nil, astiav.LogLevelInfo, "", ".\n")

	for i := 0; i < squelchedLogInterval+1; i++ {
		b.callback(nil, astiav.LogLevelError, "", "concealing 120 DC, 120 AC, 120 MV errors in P frame\n")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[0], `"message":"stream changed"`)
	assert.Contains(t, lines[1], `"squelchCount":1`)
	assert.Contains(t, lines[2], `"squelchCount":257`)
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	require.Error(t, SetupLogging(&log, "chatty"))
}
