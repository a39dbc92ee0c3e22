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

// Package annexb splits Annex-B H.264 and HEVC byte streams into NAL units
// and groups those into access units, one coded picture each.
package annexb

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/hevc"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

var (
	startCode     = []byte{0, 0, 1}
	longStartCode = []byte{0, 0, 0, 1}
)

// SplitNALUnits is a bufio.SplitFunc that yields NAL units without their
// start codes. Bytes before the first start code are skipped, as are empty
// NAL units.
func SplitNALUnits(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, startCode)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}

		// A start code may straddle the buffer boundary.
		if len(data) > len(startCode)-1 {
			return len(data) - (len(startCode) - 1), nil, nil
		}

		return 0, nil, nil
	}

	body := start + len(startCode)

	next := bytes.Index(data[body:], startCode)
	if next < 0 {
		if !atEOF {
			return start, nil, nil
		}

		nalu := trimTrailingZeros(data[body:])
		if len(nalu) == 0 {
			return len(data), nil, nil
		}

		return len(data), nalu, nil
	}

	end := body + next

	// The zero byte of a 4-byte start code and any trailing_zero_8bits end
	// up before the next 00 00 01. NAL units never end in a zero byte.
	nalu := trimTrailingZeros(data[body:end])
	if len(nalu) == 0 {
		return end, nil, nil
	}

	return end, nalu, nil
}

func trimTrailingZeros(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}

	return b
}

// Split returns the NAL units of an in-memory Annex-B buffer. The returned
// slices alias data.
func Split(data []byte) [][]byte {
	var nalus [][]byte

	for len(data) > 0 {
		advance, token, _ := SplitNALUnits(data, true)
		if token != nil {
			nalus = append(nalus, token)
		}

		if advance == 0 {
			break
		}

		data = data[advance:]
	}

	return nalus
}

// Join renders NAL units as one Annex-B buffer with 4-byte start codes.
func Join(nalus [][]byte) []byte {
	size := 0
	for _, n := range nalus {
		size += len(longStartCode) + len(n)
	}

	out := make([]byte, 0, size)
	for _, n := range nalus {
		out = append(out, longStartCode...)
		out = append(out, n...)
	}

	return out
}

// IsVCL reports whether nalu carries slice data.
func IsVCL(codec engine.CodecID, nalu []byte) bool {
	if len(nalu) == 0 {
		return false
	}

	if codec == engine.CodecIDHEVC {
		return hevc.GetNaluType(nalu[0]) < hevc.NALU_VPS
	}

	t := avc.GetNaluType(nalu[0])

	return t >= avc.NALU_NON_IDR && t <= avc.NALU_IDR
}

// IsFirstSlice reports whether nalu is the first slice of a picture:
// first_mb_in_slice == 0 for H.264, first_slice_segment_in_pic_flag for HEVC.
func IsFirstSlice(codec engine.CodecID, nalu []byte) bool {
	if !IsVCL(codec, nalu) {
		return false
	}

	if codec == engine.CodecIDHEVC {
		return len(nalu) > 2 && nalu[2]&0x80 != 0
	}

	// ue(v) encodes 0 as a single 1 bit.
	return len(nalu) > 1 && nalu[1]&0x80 != 0
}

// isPrefix reports whether nalu may only appear ahead of a picture's slices,
// so that it closes a picture already under way.
func isPrefix(codec engine.CodecID, nalu []byte) bool {
	if codec == engine.CodecIDHEVC {
		switch hevc.GetNaluType(nalu[0]) { //nolint:exhaustive // Only prefix types matter.
		case hevc.NALU_AUD, hevc.NALU_VPS, hevc.NALU_SPS, hevc.NALU_PPS, hevc.NALU_SEI_PREFIX:
			return true
		default:
			return false
		}
	}

	switch avc.GetNaluType(nalu[0]) { //nolint:exhaustive // Only prefix types matter.
	case avc.NALU_AUD, avc.NALU_SPS, avc.NALU_PPS, avc.NALU_SEI:
		return true
	default:
		return false
	}
}
