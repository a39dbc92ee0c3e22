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

package decoder

import (
	"errors"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// Pull drains every frame the engine has ready and returns only the newest,
// in host memory. Older frames are released. It returns nil if no frame was
// ready. The caller owns the returned frame and must Release it.
//
// If copying a hardware frame to host memory fails, that frame is dropped
// and the last frame obtained before it, if any, is returned. Hardware
// decoding stays active: the engine keeps producing device frames, and the
// next Pull transfers them again.
func (d *Decoder) Pull() engine.Frame { //nolint:ireturn // Engine frames are an interface.
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.state != StateOpen {
		d.log.Error().Str(lState, d.state.String()).Msg("pull on a decoder that is not open")

		return nil
	}

	var newest engine.Frame

	for {
		frame, err := d.ctx.ReceiveFrame()
		if err != nil {
			if !errors.Is(err, engine.ErrAgain) && !errors.Is(err, engine.ErrEOF) {
				d.log.Error().Err(err).Msg("receiving frame failed")
			}

			return newest
		}

		if d.hwPixFmt != engine.PixelFormatNone && frame.PixelFormat() == d.hwPixFmt {
			if d.hwDevice == nil {
				// Decoded on the device before we fell back to software.
				frame.Release()

				continue
			}

			host, err := frame.TransferToHost()
			frame.Release()

			if err != nil {
				d.log.Error().Err(err).Str(lPixFmt, string(d.hwPixFmt)).
					Msg("copying frame from hardware failed, dropping frame")

				return newest
			}

			frame = host
		}

		if newest != nil {
			newest.Release()
		}

		newest = frame
	}
}
