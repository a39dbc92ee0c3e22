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
	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// Assembler groups consecutive NAL units into access units.
//
// A picture's access unit ends when a NAL unit arrives that can only start
// the next one: an access unit delimiter, a parameter set or SEI, or the
// first slice of a new picture. Units before the first slice are kept and
// delivered with it.
type Assembler struct {
	codec   engine.CodecID
	pending [][]byte
	sawVCL  bool
}

// NewAssembler returns an Assembler for codec, which is either
// engine.CodecIDH264 or engine.CodecIDHEVC.
func NewAssembler(codec engine.CodecID) *Assembler {
	return &Assembler{codec: codec}
}

// Push adds one NAL unit, which is copied. If it starts a new access unit,
// Push returns the previous one in Annex-B form, otherwise nil.
func (a *Assembler) Push(nalu []byte) []byte {
	if len(nalu) == 0 {
		return nil
	}

	var au []byte

	if a.sawVCL && (isPrefix(a.codec, nalu) || IsFirstSlice(a.codec, nalu)) {
		au = a.Flush()
	}

	a.pending = append(a.pending, append([]byte(nil), nalu...))

	if IsVCL(a.codec, nalu) {
		a.sawVCL = true
	}

	return au
}

// Flush returns whatever has been collected as an access unit, or nil if
// nothing has.
func (a *Assembler) Flush() []byte {
	if len(a.pending) == 0 {
		return nil
	}

	au := Join(a.pending)
	a.pending = a.pending[:0]
	a.sawVCL = false

	return au
}
