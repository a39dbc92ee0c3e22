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

package annexb

import (
	"bufio"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// H.264 NAL units: header byte, then payload. 0x88 / 0x9a have
// first_mb_in_slice == 0, 0x48 does not.
var (
	avcAUD      = []byte{0x09, 0xf0}
	avcSPS      = []byte{0x67, 0x42, 0xc0, 0x1e}
	avcPPS      = []byte{0x68, 0xce, 0x3c, 0x80}
	avcSEI      = []byte{0x06, 0x05, 0x01, 0x80}
	avcIDR      = []byte{0x65, 0x88, 0x84, 0x21}
	avcIDRPart2 = []byte{0x65, 0x48, 0x11, 0x22}
	avcP        = []byte{0x41, 0x9a, 0x22, 0x6c}
)

// HEVC NAL units: two header bytes, then payload with
// first_slice_segment_in_pic_flag in the top bit.
var (
	hevcVPS      = []byte{0x40, 0x01, 0x0c, 0x01}
	hevcSPS      = []byte{0x42, 0x01, 0x01, 0x01}
	hevcPPS      = []byte{0x44, 0x01, 0xc1, 0x72}
	hevcIDR      = []byte{0x26, 0x01, 0xaf, 0x11}
	hevcIDRPart2 = []byte{0x26, 0x01, 0x2f, 0x12}
	hevcTrail    = []byte{0x02, 0x01, 0xd0, 0x13}
)

func TestSplit(t *testing.T) {
	t.Parallel()

	stream := []byte{0xff, 0xee} // Garbage before the first start code.
	stream = append(stream, 0, 0, 0, 1)
	stream = append(stream, avcSPS...)
	stream = append(stream, 0, 0, 1)
	stream = append(stream, avcPPS...)
	stream = append(stream, 0, 0, 0, 1, 0, 0, 1) // Empty NAL unit.
	stream = append(stream, avcIDR...)
	stream = append(stream, 0, 0) // trailing_zero_8bits

	assert.Equal(t, [][]byte{avcSPS, avcPPS, avcIDR}, Split(stream))
	assert.Empty(t, Split([]byte{0x12, 0x34, 0x56}))
	assert.Empty(t, Split(nil))
}

func TestSplitNALUnitsAcrossReads(t *testing.T) {
	t.Parallel()

	stream := Join([][]byte{avcSPS, avcPPS, avcIDR, avcP})

	// A reader that returns one byte at a time makes start codes straddle
	// every possible buffer boundary.
	scanner := bufio.NewScanner(&oneByteReader{data: stream})
	scanner.Split(SplitNALUnits)

	var got [][]byte
	for scanner.Scan() {
		got = append(got, append([]byte(nil), scanner.Bytes()...))
	}

	require.NoError(t, scanner.Err())
	assert.Equal(t, [][]byte{avcSPS, avcPPS, avcIDR, avcP}, got)
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}

	p[0] = r.data[0]
	r.data = r.data[1:]

	return 1, nil
}

func TestJoin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68}, Join([][]byte{{0x67, 0x42}, {0x68}}))
	assert.Empty(t, Join(nil))
}

func TestNALUClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, IsVCL(engine.CodecIDH264, avcIDR))
	assert.True(t, IsVCL(engine.CodecIDH264, avcP))
	assert.False(t, IsVCL(engine.CodecIDH264, avcSPS))
	assert.False(t, IsVCL(engine.CodecIDH264, nil))

	assert.True(t, IsFirstSlice(engine.CodecIDH264, avcIDR))
	assert.False(t, IsFirstSlice(engine.CodecIDH264, avcIDRPart2))
	assert.False(t, IsFirstSlice(engine.CodecIDH264, avcSEI))

	assert.True(t, IsVCL(engine.CodecIDHEVC, hevcIDR))
	assert.True(t, IsVCL(engine.CodecIDHEVC, hevcTrail))
	assert.False(t, IsVCL(engine.CodecIDHEVC, hevcVPS))

	assert.True(t, IsFirstSlice(engine.CodecIDHEVC, hevcIDR))
	assert.False(t, IsFirstSlice(engine.CodecIDHEVC, hevcIDRPart2))
}

func TestAssemblerH264(t *testing.T) {
	t.Parallel()

	a := NewAssembler(engine.CodecIDH264)

	var aus [][]byte

	for _, n := range [][]byte{avcSPS, avcPPS, avcIDR, avcIDRPart2, avcSEI, avcP, avcAUD, avcP} {
		if au := a.Push(n); au != nil {
			aus = append(aus, au)
		}
	}

	aus = append(aus, a.Flush())
	assert.Nil(t, a.Flush())

	require.Len(t, aus, 3)
	assert.Equal(t, Join([][]byte{avcSPS, avcPPS, avcIDR, avcIDRPart2}), aus[0])
	assert.Equal(t, Join([][]byte{avcSEI, avcP}), aus[1])
	assert.Equal(t, Join([][]byte{avcAUD, avcP}), aus[2])
}

func TestAssemblerSplitsOnFirstSlice(t *testing.T) {
	t.Parallel()

	a := NewAssembler(engine.CodecIDH264)

	assert.Nil(t, a.Push(avcP))
	assert.Nil(t, a.Push(nil))
	assert.Equal(t, Join([][]byte{avcP}), a.Push(avcP))
	assert.Equal(t, Join([][]byte{avcP}), a.Flush())
}

func TestAssemblerCopiesInput(t *testing.T) {
	t.Parallel()

	a := NewAssembler(engine.CodecIDH264)

	buf := append([]byte(nil), avcIDR...)
	a.Push(buf)
	buf[1] = 0

	assert.Equal(t, Join([][]byte{avcIDR}), a.Flush())
}

func TestAssemblerHEVC(t *testing.T) {
	t.Parallel()

	a := NewAssembler(engine.CodecIDHEVC)

	var aus [][]byte

	for _, n := range [][]byte{hevcVPS, hevcSPS, hevcPPS, hevcIDR, hevcIDRPart2, hevcTrail, hevcTrail} {
		if au := a.Push(n); au != nil {
			aus = append(aus, au)
		}
	}

	aus = append(aus, a.Flush())

	require.Len(t, aus, 3)
	assert.Equal(t, Join([][]byte{hevcVPS, hevcSPS, hevcPPS, hevcIDR, hevcIDRPart2}), aus[0])
	assert.Equal(t, Join([][]byte{hevcTrail}), aus[1])
	assert.Equal(t, Join([][]byte{hevcTrail}), aus[2])
}
