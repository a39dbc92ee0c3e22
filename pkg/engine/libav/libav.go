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

// Package libav implements engine.Engine on top of FFmpeg's libavcodec.
package libav

import (
	"errors"
	"fmt"
	"image"

	"github.com/asticode/go-astiav"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

var codecIDToAstiav = map[engine.CodecID]astiav.CodecID{
	engine.CodecIDH264: astiav.CodecIDH264,
	engine.CodecIDHEVC: astiav.CodecIDHevc,
}

var methodFlagsToEngine = map[astiav.CodecHardwareConfigMethodFlag]engine.HardwareConfigMethod{
	astiav.CodecHardwareConfigMethodFlagHwDeviceCtx: engine.HardwareConfigMethodHWDeviceCtx,
	astiav.CodecHardwareConfigMethodFlagHwFramesCtx: engine.HardwareConfigMethodHWFramesCtx,
	astiav.CodecHardwareConfigMethodFlagInternal:    engine.HardwareConfigMethodInternal,
	astiav.CodecHardwareConfigMethodFlagAdHoc:       engine.HardwareConfigMethodAdHoc,
}

// softwarePixelFormats resolves formats the decoder may ask for that are not
// in the engine's candidate list.
var softwarePixelFormats = map[engine.PixelFormat]astiav.PixelFormat{
	engine.PixelFormatNV12:    astiav.PixelFormatNv12,
	engine.PixelFormatYUV420P: astiav.PixelFormatYuv420P,
}

type decoderNotFoundError struct {
	id engine.CodecID
}

func (e *decoderNotFoundError) Error() string {
	return fmt.Sprintf("no decoder available for codec %s", e.id)
}

type hardwareDeviceTypeError struct {
	name string
}

func (e *hardwareDeviceTypeError) Error() string {
	return fmt.Sprintf("hardware device type %q not found", e.name)
}

// translateError maps FFmpeg's transient results onto the engine errors.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return engine.ErrAgain
	case errors.Is(err, astiav.ErrEof):
		return engine.ErrEOF
	}

	return err
}

func pixelFormatToEngine(pf astiav.PixelFormat) engine.PixelFormat {
	if pf == astiav.PixelFormatNone {
		return engine.PixelFormatNone
	}

	return engine.PixelFormat(pf.Name())
}

// Engine is the FFmpeg-backed engine.Engine. It holds no state.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) FindDecoder(id engine.CodecID) (engine.Codec, error) { //nolint:ireturn // Interface boundary.
	avID, ok := codecIDToAstiav[id]
	if !ok {
		return nil, &decoderNotFoundError{id}
	}

	c := astiav.FindDecoder(avID)
	if c == nil {
		return nil, &decoderNotFoundError{id}
	}

	return &codec{id: id, c: c}, nil
}

func (e *Engine) HardwareDeviceTypeKnown(name string) bool {
	return astiav.FindHardwareDeviceTypeByName(name) != astiav.HardwareDeviceTypeNone
}

func (e *Engine) CreateHardwareDevice(name string) (engine.HardwareDevice, error) { //nolint:ireturn // Interface boundary.
	t := astiav.FindHardwareDeviceTypeByName(name)
	if t == astiav.HardwareDeviceTypeNone {
		return nil, &hardwareDeviceTypeError{name}
	}

	hdc, err := astiav.CreateHardwareDeviceContext(t, "", nil, 0)
	if err != nil {
		return nil, fmt.Errorf("creating %s device context failed: %w", name, err)
	}

	return &hardwareDevice{deviceType: name, hdc: hdc}, nil
}

type codec struct {
	id engine.CodecID
	c  *astiav.Codec
}

func (c *codec) Name() string {
	return c.c.Name()
}

func (c *codec) ID() engine.CodecID {
	return c.id
}

func (c *codec) HardwareConfigs() []engine.HardwareConfig {
	avConfigs := c.c.HardwareConfigs()
	configs := make([]engine.HardwareConfig, 0, len(avConfigs))

	for _, avConfig := range avConfigs {
		var methods engine.HardwareConfigMethod

		for avFlag, flag := range methodFlagsToEngine {
			if avConfig.MethodFlags().Has(avFlag) {
				methods |= flag
			}
		}

		configs = append(configs, engine.HardwareConfig{
			DeviceType:  avConfig.HardwareDeviceType().String(),
			Methods:     methods,
			PixelFormat: pixelFormatToEngine(avConfig.PixelFormat()),
		})
	}

	return configs
}

func (c *codec) NewContext() (engine.CodecContext, error) { //nolint:ireturn // Interface boundary.
	cc := astiav.AllocCodecContext(c.c)
	if cc == nil {
		return nil, fmt.Errorf("allocating %s codec context failed", c.c.Name())
	}

	return &codecContext{
		codec: c.c,
		cc:    cc,
		pkt:   astiav.AllocPacket(),
	}, nil
}

type hardwareDevice struct {
	deviceType string
	hdc        *astiav.HardwareDeviceContext
}

func (d *hardwareDevice) DeviceType() string {
	return d.deviceType
}

func (d *hardwareDevice) Release() {
	if d.hdc == nil {
		return
	}

	d.hdc.Free()
	d.hdc = nil
}

// codecContext wraps an astiav.CodecContext and a reusable input packet.
type codecContext struct {
	codec *astiav.Codec
	cc    *astiav.CodecContext
	pkt   *astiav.Packet
}

// SetHardwareDevice replaces the context's hw_device_ctx reference. A nil dev
// unrefs it. Detaching does not reinitialize the decoder: frames already
// bound to the device keep coming until get_format runs again.
func (c *codecContext) SetHardwareDevice(dev engine.HardwareDevice) {
	hd, ok := dev.(*hardwareDevice)
	if !ok || hd.hdc == nil {
		c.cc.SetHardwareDeviceContext(nil)

		return
	}

	c.cc.SetHardwareDeviceContext(hd.hdc)
}

func (c *codecContext) SetFormatSelector(sel engine.FormatSelector) {
	c.cc.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		candidates := make([]engine.PixelFormat, 0, len(pfs))
		for _, pf := range pfs {
			candidates = append(candidates, pixelFormatToEngine(pf))
		}

		chosen := sel(candidates)

		for i, candidate := range candidates {
			if candidate == chosen {
				return pfs[i]
			}
		}

		if pf, ok := softwarePixelFormats[chosen]; ok {
			return pf
		}

		return astiav.PixelFormatNone
	})
}

func (c *codecContext) Open() error {
	if err := c.cc.Open(c.codec, nil); err != nil {
		return fmt.Errorf("opening %s codec context failed: %w", c.codec.Name(), err)
	}

	return nil
}

func (c *codecContext) SendPacket(data []byte) error {
	c.pkt.Unref()

	if err := c.pkt.FromData(data); err != nil {
		return fmt.Errorf("wrapping packet data failed: %w", err)
	}

	err := translateError(c.cc.SendPacket(c.pkt))
	c.pkt.Unref()

	return err
}

func (c *codecContext) ReceiveFrame() (engine.Frame, error) { //nolint:ireturn // Interface boundary.
	f := astiav.AllocFrame()

	if err := c.cc.ReceiveFrame(f); err != nil {
		f.Free()

		return nil, translateError(err)
	}

	return &frame{f: f}, nil
}

func (c *codecContext) Close() {
	c.pkt.Free()
	c.cc.Free()
}

// frame wraps an owned astiav.Frame.
type frame struct {
	f *astiav.Frame
}

func (f *frame) PixelFormat() engine.PixelFormat {
	return pixelFormatToEngine(f.f.PixelFormat())
}

func (f *frame) Width() int {
	return f.f.Width()
}

func (f *frame) Height() int {
	return f.f.Height()
}

func (f *frame) TransferToHost() (engine.Frame, error) { //nolint:ireturn // Interface boundary.
	host := astiav.AllocFrame()

	if err := f.f.TransferHardwareData(host); err != nil {
		host.Free()

		return nil, fmt.Errorf("transferring frame from hardware failed: %w", err)
	}

	host.SetPts(f.f.Pts())

	return &frame{f: host}, nil
}

func (f *frame) Image() (image.Image, error) {
	img, err := f.f.Data().GuessImageFormat()
	if err != nil {
		return nil, fmt.Errorf("no image format for %s: %w", f.PixelFormat(), err)
	}

	if err := f.f.Data().ToImage(img); err != nil {
		return nil, fmt.Errorf("converting frame to image failed: %w", err)
	}

	return img, nil
}

func (f *frame) Release() {
	if f.f == nil {
		return
	}

	f.f.Free()
	f.f = nil
}
