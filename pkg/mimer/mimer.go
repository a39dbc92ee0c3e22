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

// mimer is a helper package to determine the media type of an input stream.
package mimer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/hevc"
	"github.com/aofei/mimesniffer"

	"github.com/TurbineOne/decode-pump/pkg/annexb"
)

// Media types of the streams we know how to sniff.
const (
	MediaTypeH264 = "video/h264"
	MediaTypeH265 = "video/h265"
	MediaTypeMP2T = "video/mp2t"

	UnknownMediaType = "application/octet-stream"
)

// isVideoTsSignature returns true if the given buffer is a video.ts file.
// According to https://en.wikipedia.org/wiki/List_of_file_signatures,
// the hex value 0x47 should be the first byte of a video.ts file and
// repeated every 188 bytes.
func isVideoTsSignature(buffer []byte) bool {
	const (
		tsSignature         = 0x47
		tsSignatureInterval = 188
	)

	if len(buffer) < tsSignatureInterval {
		return false
	}

	for i := 0; i < len(buffer); i += tsSignatureInterval {
		if buffer[i] != tsSignature {
			return false
		}
	}

	return true
}

// firstNALUnit returns the first NAL unit of an Annex-B buffer, which must
// start with a start code.
func firstNALUnit(buffer []byte) []byte {
	if len(buffer) < 4 || buffer[0] != 0 || buffer[1] != 0 {
		return nil
	}

	if buffer[2] != 1 && (buffer[2] != 0 || buffer[3] != 1) {
		return nil
	}

	nalus := annexb.Split(buffer)
	if len(nalus) == 0 {
		return nil
	}

	return nalus[0]
}

// isH265Signature matches an Annex-B HEVC stream opening with a VPS, an
// access unit delimiter or SEI. The two-byte NAL header must have
// nuh_layer_id 0 and a nonzero temporal id.
func isH265Signature(buffer []byte) bool {
	nalu := firstNALUnit(buffer)
	if len(nalu) < 2 || nalu[0]&0x81 != 0 || nalu[1]&0xf8 != 0 || nalu[1]&0x07 == 0 {
		return false
	}

	switch hevc.GetNaluType(nalu[0]) { //nolint:exhaustive // Only stream openers matter.
	case hevc.NALU_VPS, hevc.NALU_AUD, hevc.NALU_SEI_PREFIX:
		return true
	default:
		return false
	}
}

// isH264Signature matches an Annex-B H.264 stream opening with an SPS, an
// access unit delimiter or SEI.
func isH264Signature(buffer []byte) bool {
	nalu := firstNALUnit(buffer)
	if len(nalu) == 0 || nalu[0]&0x80 != 0 || isH265Signature(buffer) {
		return false
	}

	switch avc.GetNaluType(nalu[0]) { //nolint:exhaustive // Only stream openers matter.
	case avc.NALU_SPS, avc.NALU_AUD, avc.NALU_SEI:
		return true
	default:
		return false
	}
}

// init initializes the mimer package.
func init() {
	mimesniffer.Register(MediaTypeMP2T, isVideoTsSignature)
	mimesniffer.Register(MediaTypeH264, isH264Signature)
	mimesniffer.Register(MediaTypeH265, isH265Signature)
}

// UnknownCodecError means the media type is not an elementary stream we can
// decode.
type UnknownCodecError struct {
	MediaType string
}

func (e *UnknownCodecError) Error() string {
	return fmt.Sprintf("no codec for media type %s", e.MediaType)
}

// CodecName returns the decoder codec name for an elementary stream media
// type.
func CodecName(mediaType string) (string, error) {
	switch mediaType {
	case MediaTypeH264:
		return "h264", nil
	case MediaTypeH265:
		return "h265", nil
	}

	return "", &UnknownCodecError{mediaType}
}

// GetContentTypeFromReader returns the content type of the data read from reader.
func GetContentTypeFromReader(reader io.Reader) (string, error) {
	const fingerprintSize = 512

	// Only the first 512 bytes are used to sniff the content type.
	buffer := make([]byte, fingerprintSize)

	n, err := io.ReadFull(reader, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return UnknownMediaType, fmt.Errorf("mime check failed read: %w", err)
	}

	mimeType := mimesniffer.Sniff(buffer[:n])

	return mimeType, nil
}

// GetContentType returns the content type of the file at the given path.
func GetContentType(sourcePath string) string {
	f, err := os.Open(sourcePath)
	if err != nil {
		return UnknownMediaType
	}

	defer func() {
		_ = f.Close()
	}()

	mimeType, _ := GetContentTypeFromReader(f)

	return mimeType
}
