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

// Package engine describes the encoded-bitstream decoding engine the decoder
// drives. Implementations live in subpackages: libav wraps FFmpeg, and
// enginetest is a scriptable stand-in for tests.
package engine

import (
	"errors"
	"image"
)

// ErrAgain is returned by SendPacket when the engine's input queue is full,
// and by ReceiveFrame when no frame is ready yet. Both are transient.
var ErrAgain = errors.New("engine: resource temporarily unavailable")

// ErrEOF is returned by ReceiveFrame once the engine has been fully drained.
var ErrEOF = errors.New("engine: end of stream")

// CodecID identifies a concrete decoder implementation in the engine.
type CodecID int

const (
	CodecIDNone CodecID = iota
	CodecIDH264
	CodecIDHEVC
)

func (id CodecID) String() string {
	switch id {
	case CodecIDH264:
		return "h264"
	case CodecIDHEVC:
		return "hevc"
	case CodecIDNone:
	}

	return "none"
}

// PixelFormat is an engine pixel format, named the way FFmpeg names them.
type PixelFormat string

const (
	PixelFormatNone    PixelFormat = "none"
	PixelFormatNV12    PixelFormat = "nv12"
	PixelFormatYUV420P PixelFormat = "yuv420p"
)

// HardwareConfigMethod is a bitmask of the ways a hardware configuration
// can be set up on a codec context.
type HardwareConfigMethod uint

const (
	HardwareConfigMethodHWDeviceCtx HardwareConfigMethod = 1 << iota
	HardwareConfigMethodHWFramesCtx
	HardwareConfigMethodInternal
	HardwareConfigMethodAdHoc
)

// Has reports whether all bits of flag are set in m.
func (m HardwareConfigMethod) Has(flag HardwareConfigMethod) bool {
	return m&flag == flag
}

// HardwareConfig is one hardware acceleration configuration advertised by a codec.
type HardwareConfig struct {
	DeviceType  string
	Methods     HardwareConfigMethod
	PixelFormat PixelFormat
}

// FormatSelector is invoked by the engine during decoding to choose an output
// pixel format among the candidates it can produce. It runs on the engine's
// call stack, i.e. inside SendPacket or ReceiveFrame.
type FormatSelector func(candidates []PixelFormat) PixelFormat

// Engine resolves decoders and hardware devices.
type Engine interface {
	// FindDecoder returns the decoder for id, or an error if it is not available.
	FindDecoder(id CodecID) (Codec, error)

	// HardwareDeviceTypeKnown reports whether the platform recognizes the
	// accelerator name, e.g. "vaapi" or "cuda".
	HardwareDeviceTypeKnown(name string) bool

	// CreateHardwareDevice opens a device of the named type. The caller owns
	// the returned reference.
	CreateHardwareDevice(name string) (HardwareDevice, error)
}

// Codec is a resolved decoder implementation.
type Codec interface {
	Name() string
	ID() CodecID

	// HardwareConfigs returns the hardware configurations in the order the
	// engine reports them.
	HardwareConfigs() []HardwareConfig

	// NewContext allocates an unopened decoding context. The caller owns it
	// and must Close it.
	NewContext() (CodecContext, error)
}

// HardwareDevice is a reference to a hardware device context.
type HardwareDevice interface {
	DeviceType() string

	// Release drops this reference.
	Release()
}

// CodecContext is a decoding context bound to one Codec. It is not safe for
// concurrent use.
type CodecContext interface {
	// SetHardwareDevice attaches dev to the context, which takes its own
	// reference. A nil dev detaches the current device.
	SetHardwareDevice(dev HardwareDevice)

	SetFormatSelector(sel FormatSelector)

	Open() error

	// SendPacket submits one encoded access unit. data is not retained.
	SendPacket(data []byte) error

	// ReceiveFrame returns the next decoded frame, owned by the caller.
	ReceiveFrame() (Frame, error)

	// Close closes and frees the context.
	Close()
}

// Frame is a decoded picture. The holder must Release it.
type Frame interface {
	PixelFormat() PixelFormat
	Width() int
	Height() int

	// TransferToHost copies a device-resident frame into a newly allocated
	// host-memory frame. The receiver is left untouched.
	TransferToHost() (Frame, error)

	// Image converts the frame's pixel data to an image.Image.
	Image() (image.Image, error)

	Release()
}
