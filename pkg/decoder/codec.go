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
	"fmt"
	"strings"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// Codec is the stream codec as announced by the sender.
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
	CodecH265HDR
)

var codecNames = map[Codec]string{
	CodecH264:    "h264",
	CodecH265:    "h265",
	CodecH265HDR: "h265_hdr",
}

var nameToCodec = map[string]Codec{
	"h264":     CodecH264,
	"avc":      CodecH264,
	"h265":     CodecH265,
	"hevc":     CodecH265,
	"h265_hdr": CodecH265HDR,
	"hevc_hdr": CodecH265HDR,
}

func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}

	return fmt.Sprintf("codec(%d)", int(c))
}

// EngineCodecID resolves c to the engine decoder that handles it. HDR and
// plain HEVC share a decoder; everything else decodes as AVC.
func (c Codec) EngineCodecID() engine.CodecID {
	switch c { //nolint:exhaustive // Default is the AVC family.
	case CodecH265, CodecH265HDR:
		return engine.CodecIDHEVC
	default:
		return engine.CodecIDH264
	}
}

type unknownCodecError struct {
	name string
}

func (e *unknownCodecError) Error() string {
	return fmt.Sprintf("unknown codec %q", e.name)
}

// ParseCodec parses a codec name as used in config files.
func ParseCodec(name string) (Codec, error) {
	c, ok := nameToCodec[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return CodecH264, &unknownCodecError{name}
	}

	return c, nil
}
