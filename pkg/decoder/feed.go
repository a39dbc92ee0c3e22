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

// maxFeedDrains bounds how many frames Feed discards for one packet if the
// engine keeps reporting its input queue as full.
const maxFeedDrains = 16

// Feed submits one encoded access unit. If the engine's input queue is full,
// Feed discards one decoded frame and retries, so a stalled consumer costs
// frames rather than blocking the producer. It returns false if the packet
// could not be submitted; the decoder stays usable either way.
//
// On success the frame-available callback runs after the lock is released.
func (d *Decoder) Feed(buf []byte) bool {
	if !d.feed(buf) {
		return false
	}

	if d.onFrameAvailable != nil {
		d.onFrameAvailable(d)
	}

	return true
}

func (d *Decoder) feed(buf []byte) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.state != StateOpen {
		d.log.Error().Str(lState, d.state.String()).Msg("feed on a decoder that is not open")

		return false
	}

	for drained := 0; ; drained++ {
		err := d.ctx.SendPacket(buf)
		if err == nil {
			return true
		}

		if !errors.Is(err, engine.ErrAgain) {
			d.log.Error().Err(err).Int(lSize, len(buf)).Msg("sending packet failed")

			return false
		}

		if drained >= maxFeedDrains {
			d.log.Error().Int(lDrained, drained).Int(lSize, len(buf)).
				Msg("decoder input still full after draining, dropping packet")

			return false
		}

		d.log.Warn().Int(lDrained, drained).Msg("decoder input full, dropping a decoded frame")

		frame, err := d.ctx.ReceiveFrame()
		if err != nil {
			d.log.Error().Err(err).Msg("draining a frame from a full decoder failed")

			return false
		}

		frame.Release()
	}
}
