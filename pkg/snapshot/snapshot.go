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

// Package snapshot presents decoded frames by periodically writing the
// newest one to a JPEG file.
package snapshot

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

const (
	lPath   = "path"
	lWidth  = "width"
	lHeight = "height"
	lFrames = "frames"
)

// Config configures a Writer.
type Config struct { //nolint:govet // Don't care about alignment.
	Path     string `yaml:"path" json:"path" env:"PATH" doc:"JPEG file to overwrite with the newest frame. Empty disables snapshots."`
	Every    int    `yaml:"every" json:"every" env:"EVERY" doc:"Write every Nth pulled frame"`
	MaxWidth int    `yaml:"maxWidth" json:"maxWidth" env:"MAX_WIDTH" doc:"Scale frames down to at most this width. Zero keeps the decoded size."`
	Quality  int    `yaml:"quality" json:"quality" env:"QUALITY" doc:"JPEG quality, 1-100"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Path:     "",
		Every:    30,
		MaxWidth: 640,
		Quality:  jpeg.DefaultQuality,
	}
}

// Writer is a pump sink that writes snapshots. It is not safe for
// concurrent use.
type Writer struct {
	config *Config
	log    zerolog.Logger
	frames uint64
	writes uint64
}

// New returns a Writer.
func New(config *Config, logger *zerolog.Logger) *Writer {
	return &Writer{
		config: config,
		log:    logger.With().Str("pkg", "snapshot").Str(lPath, config.Path).Logger(),
	}
}

// Writes returns how many snapshots were written.
func (w *Writer) Writes() uint64 {
	return w.writes
}

// WriteFrame writes frame if it is due. The file is replaced atomically, so
// readers never see a partial image.
func (w *Writer) WriteFrame(frame engine.Frame) error {
	w.frames++

	if w.config.Path == "" {
		return nil
	}

	if every := uint64(max(w.config.Every, 1)); (w.frames-1)%every != 0 { //nolint:gosec // Clamped to >= 1.
		return nil
	}

	img, err := frame.Image()
	if err != nil {
		return fmt.Errorf("converting %s frame to image failed: %w", frame.PixelFormat(), err)
	}

	img = Scale(img, w.config.MaxWidth)

	if err := writeJPEG(w.config.Path, img, w.config.Quality); err != nil {
		return err
	}

	w.writes++

	b := img.Bounds()
	w.log.Debug().Int(lWidth, b.Dx()).Int(lHeight, b.Dy()).Uint64(lFrames, w.frames).Msg("snapshot written")

	return nil
}

// Scale returns img scaled down to maxWidth, keeping the aspect ratio.
// Images that are already small enough, and a maxWidth of zero, leave img
// untouched.
func Scale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	height := max(b.Dy()*maxWidth/b.Dx(), 1)

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	return dst
}

func writeJPEG(path string, img image.Image, quality int) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot [%s]: %w", path, err)
	}

	return nil
}
