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
	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// PixelFormat returns the pixel format pulled frames are expected to have:
// the NV12 layout that hardware decoders hand back after transfer, or planar
// YUV 4:2:0 from the software decoders.
//
// TODO: HDR streams decode to 10-bit formats (p010, yuv420p10) and are
// reported wrong here until a consumer needs them.
func PixelFormat(hwActive bool) engine.PixelFormat {
	if hwActive {
		return engine.PixelFormatNV12
	}

	return engine.PixelFormatYUV420P
}
