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

package mimer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/decode-pump/pkg/annexb"
)

var (
	h264Stream = annexb.Join([][]byte{
		{0x67, 0x42, 0xc0, 0x1e, 0xd9},
		{0x68, 0xce, 0x3c, 0x80},
		{0x65, 0x88, 0x84, 0x21},
	})
	h265Stream = annexb.Join([][]byte{
		{0x40, 0x01, 0x0c, 0x01, 0xff},
		{0x42, 0x01, 0x01, 0x01},
		{0x44, 0x01, 0xc1, 0x72},
		{0x26, 0x01, 0xaf, 0x11},
	})
)

func TestSignatures(t *testing.T) {
	t.Parallel()

	assert.True(t, isH264Signature(h264Stream))
	assert.False(t, isH265Signature(h264Stream))
	assert.True(t, isH265Signature(h265Stream))
	assert.False(t, isH264Signature(h265Stream))

	// HEVC access unit delimiter; its first byte also reads as an H.264 SEI.
	hevcAUD := annexb.Join([][]byte{{0x46, 0x01, 0x50}})
	assert.True(t, isH265Signature(hevcAUD))
	assert.False(t, isH264Signature(hevcAUD))

	// A slice first is not a stream opening.
	assert.False(t, isH264Signature(annexb.Join([][]byte{{0x65, 0x88}})))
	assert.False(t, isH264Signature([]byte("#EXTM3U\n")))
	assert.False(t, isH264Signature(nil))

	ts := bytes.Repeat(append([]byte{0x47}, make([]byte, 187)...), 3)
	assert.True(t, isVideoTsSignature(ts))
	assert.False(t, isVideoTsSignature(ts[1:]))
}

func TestGetContentType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for name, tt := range map[string]struct {
		data []byte
		want string
	}{
		"in.h264": {h264Stream, MediaTypeH264},
		"in.h265": {h265Stream, MediaTypeH265},
		"in.ts":   {bytes.Repeat(append([]byte{0x47}, make([]byte, 187)...), 4), MediaTypeMP2T},
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, tt.data, 0o600))
		assert.Equal(t, tt.want, GetContentType(path), name)
	}

	assert.Equal(t, UnknownMediaType, GetContentType(filepath.Join(dir, "missing")))
}

func TestGetContentTypeFromReaderEmpty(t *testing.T) {
	t.Parallel()

	mediaType, err := GetContentTypeFromReader(bytes.NewReader(nil))
	require.Error(t, err)
	assert.Equal(t, UnknownMediaType, mediaType)
}

func TestCodecName(t *testing.T) {
	t.Parallel()

	name, err := CodecName(MediaTypeH264)
	require.NoError(t, err)
	assert.Equal(t, "h264", name)

	name, err = CodecName(MediaTypeH265)
	require.NoError(t, err)
	assert.Equal(t, "h265", name)

	_, err = CodecName(MediaTypeMP2T)

	var unknown *UnknownCodecError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, MediaTypeMP2T, unknown.MediaType)
}
