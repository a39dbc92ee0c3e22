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

package snapshot

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

type imageFrame struct {
	img image.Image
	err error
}

func (f *imageFrame) PixelFormat() engine.PixelFormat       { return engine.PixelFormatYUV420P }
func (f *imageFrame) Width() int                            { return f.img.Bounds().Dx() }
func (f *imageFrame) Height() int                           { return f.img.Bounds().Dy() }
func (f *imageFrame) TransferToHost() (engine.Frame, error) { return nil, errors.New("not on a device") }
func (f *imageFrame) Image() (image.Image, error)           { return f.img, f.err }
func (f *imageFrame) Release()                              {}

func grayFrame(w, h int, y uint8) *imageFrame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = y
	}

	return &imageFrame{img: img}
}

func testLogger(t *testing.T) *zerolog.Logger {
	t.Helper()

	l := zerolog.New(zerolog.NewTestWriter(t))

	return &l
}

func readJPEG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	img, err := jpeg.Decode(f)
	require.NoError(t, err)

	return img
}

func TestWriteFrame(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := ConfigDefault()
	cfg.Path = filepath.Join(dir, "latest.jpg")
	cfg.Every = 2
	cfg.MaxWidth = 320

	w := New(&cfg, testLogger(t))

	require.NoError(t, w.WriteFrame(grayFrame(640, 360, 200)))
	assert.Equal(t, uint64(1), w.Writes())

	img := readJPEG(t, cfg.Path)
	assert.Equal(t, image.Rect(0, 0, 320, 180), img.Bounds())

	y := color.GrayModel.Convert(img.At(160, 90)).(color.Gray).Y //nolint:forcetypeassert // GrayModel returns Gray.
	assert.InDelta(t, 200, int(y), 3)

	// Skipped, Every is 2.
	require.NoError(t, w.WriteFrame(grayFrame(640, 360, 10)))
	assert.Equal(t, uint64(1), w.Writes())

	require.NoError(t, w.WriteFrame(grayFrame(100, 50, 10)))
	assert.Equal(t, uint64(2), w.Writes())
	assert.Equal(t, image.Rect(0, 0, 100, 50), readJPEG(t, cfg.Path).Bounds())

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFrameDisabled(t *testing.T) {
	t.Parallel()

	cfg := ConfigDefault()
	w := New(&cfg, testLogger(t))

	require.NoError(t, w.WriteFrame(&imageFrame{err: errors.New("unused")}))
	assert.Zero(t, w.Writes())
}

func TestWriteFrameErrors(t *testing.T) {
	t.Parallel()

	cfg := ConfigDefault()
	cfg.Path = filepath.Join(t.TempDir(), "latest.jpg")
	cfg.Every = 1

	w := New(&cfg, testLogger(t))
	require.Error(t, w.WriteFrame(&imageFrame{err: errors.New("no host image")}))

	cfg.Path = filepath.Join(t.TempDir(), "missing", "latest.jpg")
	require.Error(t, w.WriteFrame(grayFrame(16, 16, 0)))
	assert.Zero(t, w.Writes())
}

func TestScale(t *testing.T) {
	t.Parallel()

	small := grayFrame(64, 36, 0).img
	assert.Same(t, small, Scale(small, 640))
	assert.Same(t, small, Scale(small, 0))
	assert.Equal(t, image.Rect(0, 0, 32, 18), Scale(small, 32).Bounds())
	assert.Equal(t, image.Rect(0, 0, 1, 1), Scale(small, 1).Bounds())
}
