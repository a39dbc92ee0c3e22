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

// Package enginetest provides an in-memory engine.Engine for tests.
//
// Every packet sent to a Context becomes exactly one Frame carrying a copy of
// the packet bytes and a sequence number, so tests can tell which input a
// pulled frame came from. Devices are reference counted and live frames and
// contexts are counted, so tests can check for leaks.
//
// Context state is deliberately not locked: callers must serialize access the
// way a real engine requires, and the race detector reports it if they don't.
package enginetest

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// Default frame geometry.
const (
	FrameWidth  = 64
	FrameHeight = 36
)

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("enginetest: injected failure")

// Engine is a fake engine.Engine. Exported fields configure it and must be
// set before the engine is used.
type Engine struct {
	// DeviceTypes are the accelerator names the platform recognizes.
	DeviceTypes []string

	// DeviceCreateErr, if set, is returned by CreateHardwareDevice.
	DeviceCreateErr error

	// OpenErr, if set, is returned by every Context.Open.
	OpenErr error

	// QueueDepth is how many frames a Context buffers before SendPacket
	// returns engine.ErrAgain. Zero means unbounded.
	QueueDepth int

	// Candidates, if set, are offered to the format selector on the first
	// packet of a Context with a hardware device attached. The default is
	// the negotiated hardware format followed by yuv420p.
	Candidates []engine.PixelFormat

	// HostPixelFormat is the format of frames produced by TransferToHost.
	HostPixelFormat engine.PixelFormat

	lock       sync.Mutex
	codecs     map[engine.CodecID]*Codec
	devices    []*Device
	contexts   []*Context
	liveFrames atomic.Int64
	transfers  atomic.Int64
}

// New returns an Engine with software h264 and hevc decoders and "vaapi" and
// "cuda" device types, none of which the codecs support until AddHardwareConfig.
func New() *Engine {
	e := &Engine{
		DeviceTypes:     []string{"vaapi", "cuda"},
		HostPixelFormat: engine.PixelFormatNV12,
		codecs:          make(map[engine.CodecID]*Codec),
	}

	e.AddCodec(engine.CodecIDH264, "h264")
	e.AddCodec(engine.CodecIDHEVC, "hevc")

	return e
}

// AddCodec makes a decoder available.
func (e *Engine) AddCodec(id engine.CodecID, name string) *Codec {
	e.lock.Lock()
	defer e.lock.Unlock()

	c := &Codec{engine: e, id: id, name: name}
	e.codecs[id] = c

	return c
}

// RemoveCodec makes a decoder unavailable.
func (e *Engine) RemoveCodec(id engine.CodecID) {
	e.lock.Lock()
	defer e.lock.Unlock()

	delete(e.codecs, id)
}

// AddHardwareConfig appends a hardware configuration to codec id.
func (e *Engine) AddHardwareConfig(id engine.CodecID, cfg engine.HardwareConfig) {
	e.lock.Lock()
	defer e.lock.Unlock()

	c := e.codecs[id]
	c.configs = append(c.configs, cfg)
}

// Devices returns every device created so far.
func (e *Engine) Devices() []*Device {
	e.lock.Lock()
	defer e.lock.Unlock()

	return append([]*Device(nil), e.devices...)
}

// Contexts returns every context allocated so far.
func (e *Engine) Contexts() []*Context {
	e.lock.Lock()
	defer e.lock.Unlock()

	return append([]*Context(nil), e.contexts...)
}

// LiveContexts returns how many allocated contexts have not been closed.
func (e *Engine) LiveContexts() int {
	live := 0

	for _, c := range e.Contexts() {
		if !c.Closed() {
			live++
		}
	}

	return live
}

// LiveFrames returns how many frames are allocated and not yet released.
func (e *Engine) LiveFrames() int {
	return int(e.liveFrames.Load())
}

// Transfers returns how many device-to-host transfers were attempted.
func (e *Engine) Transfers() int {
	return int(e.transfers.Load())
}

func (e *Engine) FindDecoder(id engine.CodecID) (engine.Codec, error) { //nolint:ireturn // Interface boundary.
	e.lock.Lock()
	defer e.lock.Unlock()

	c, ok := e.codecs[id]
	if !ok {
		return nil, fmt.Errorf("enginetest: no decoder for %s", id)
	}

	return c, nil
}

func (e *Engine) HardwareDeviceTypeKnown(name string) bool {
	for _, t := range e.DeviceTypes {
		if t == name {
			return true
		}
	}

	return false
}

func (e *Engine) CreateHardwareDevice(name string) (engine.HardwareDevice, error) { //nolint:ireturn // Interface boundary.
	if !e.HardwareDeviceTypeKnown(name) {
		return nil, fmt.Errorf("enginetest: unknown device type %q", name)
	}

	if e.DeviceCreateErr != nil {
		return nil, e.DeviceCreateErr
	}

	d := &Device{deviceType: name}
	d.refs.Store(1)

	e.lock.Lock()
	e.devices = append(e.devices, d)
	e.lock.Unlock()

	return &deviceRef{d: d}, nil
}

// Codec is a fake decoder.
type Codec struct {
	engine  *Engine
	id      engine.CodecID
	name    string
	configs []engine.HardwareConfig
}

func (c *Codec) Name() string       { return c.name }
func (c *Codec) ID() engine.CodecID { return c.id }

func (c *Codec) HardwareConfigs() []engine.HardwareConfig {
	c.engine.lock.Lock()
	defer c.engine.lock.Unlock()

	return append([]engine.HardwareConfig(nil), c.configs...)
}

func (c *Codec) NewContext() (engine.CodecContext, error) { //nolint:ireturn // Interface boundary.
	ctx := &Context{engine: c.engine, codec: c}

	c.engine.lock.Lock()
	c.engine.contexts = append(c.engine.contexts, ctx)
	c.engine.lock.Unlock()

	return ctx, nil
}

// Device is a reference-counted fake hardware device.
type Device struct {
	deviceType string
	refs       atomic.Int32
}

// Refs returns the current reference count.
func (d *Device) Refs() int {
	return int(d.refs.Load())
}

func (d *Device) unref() {
	if d.refs.Add(-1) < 0 {
		panic("enginetest: device released more times than referenced")
	}
}

// deviceRef is one reference to a Device. Releasing it twice panics.
type deviceRef struct {
	d        *Device
	released atomic.Bool
}

func (r *deviceRef) DeviceType() string {
	return r.d.deviceType
}

func (r *deviceRef) Release() {
	if r.released.Swap(true) {
		panic("enginetest: device reference released twice")
	}

	r.d.unref()
}

// Context is a fake codec context.
type Context struct {
	engine *Engine
	codec  *Codec

	// SendErrs are returned, in order, by the next SendPacket calls.
	SendErrs []error
	// ReceiveErrs are returned, in order, by the next ReceiveFrame calls
	// before any buffered frame.
	ReceiveErrs []error
	// TransferErrs are returned, in order, by the next TransferToHost calls
	// of this context's frames, before TransferErr is consulted.
	TransferErrs []error
	// TransferErr, if set, fails every TransferToHost of this context's
	// frames. Frames keep their device binding after a detach, so transfers
	// still succeed once it is cleared.
	TransferErr error

	device   *deviceRef
	selector engine.FormatSelector
	opened   bool
	closed   atomic.Bool

	negotiated  bool
	outFormat   engine.PixelFormat
	hwOutput    bool
	pending     []*Frame
	sent        int
	received    int
	selectCalls int
}

// Device returns the device the context currently references, if any.
func (c *Context) Device() *Device {
	if c.device == nil {
		return nil
	}

	return c.device.d
}

// Closed reports whether Close was called.
func (c *Context) Closed() bool {
	return c.closed.Load()
}

// Sent returns how many packets were accepted.
func (c *Context) Sent() int { return c.sent }

// Received returns how many frames were handed out by ReceiveFrame.
func (c *Context) Received() int { return c.received }

// Pending returns how many frames are buffered.
func (c *Context) Pending() int { return len(c.pending) }

// SelectCalls returns how many times the format selector ran.
func (c *Context) SelectCalls() int { return c.selectCalls }

// SelectFormat invokes the installed format selector the way the engine does
// when it reinitializes mid-stream, e.g. on a resolution change. It must be
// called with the same serialization as SendPacket. The chosen format applies
// to every frame decoded afterwards.
func (c *Context) SelectFormat(candidates []engine.PixelFormat) engine.PixelFormat {
	c.selectCalls++

	hwFormat := engine.PixelFormatNone
	if c.device != nil {
		hwFormat = c.hardwarePixelFormat()
	}

	c.outFormat = c.selector(candidates)
	c.hwOutput = hwFormat != engine.PixelFormatNone && c.outFormat == hwFormat
	c.negotiated = true

	return c.outFormat
}

// SetHardwareDevice swaps the device reference. Like FFmpeg, it does not
// renegotiate the output format: a context decoding on the device keeps
// producing device frames until the next SelectFormat.
func (c *Context) SetHardwareDevice(dev engine.HardwareDevice) {
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}

	if dev == nil {
		return
	}

	ref, ok := dev.(*deviceRef)
	if !ok {
		panic("enginetest: foreign hardware device")
	}

	ref.d.refs.Add(1)
	c.device = &deviceRef{d: ref.d}
}

func (c *Context) SetFormatSelector(sel engine.FormatSelector) {
	c.selector = sel
}

func (c *Context) Open() error {
	if c.engine.OpenErr != nil {
		return c.engine.OpenErr
	}

	c.opened = true

	return nil
}

func (c *Context) hardwarePixelFormat() engine.PixelFormat {
	for _, cfg := range c.codec.configs {
		if cfg.DeviceType == c.device.d.deviceType {
			return cfg.PixelFormat
		}
	}

	return engine.PixelFormatNone
}

// negotiate mimics FFmpeg calling get_format once the stream parameters are known.
func (c *Context) negotiate() {
	c.negotiated = true
	c.outFormat = engine.PixelFormatYUV420P
	c.hwOutput = false

	if c.device == nil || c.selector == nil {
		return
	}

	candidates := c.engine.Candidates
	if candidates == nil {
		candidates = []engine.PixelFormat{c.hardwarePixelFormat(), engine.PixelFormatYUV420P}
	}

	c.SelectFormat(candidates)
}

func (c *Context) SendPacket(data []byte) error {
	if !c.opened || c.Closed() {
		return errors.New("enginetest: context not open")
	}

	if len(c.SendErrs) > 0 {
		err := c.SendErrs[0]
		c.SendErrs = c.SendErrs[1:]

		if err != nil {
			return err
		}
	}

	if c.engine.QueueDepth > 0 && len(c.pending) >= c.engine.QueueDepth {
		return engine.ErrAgain
	}

	if !c.negotiated {
		c.negotiate()
	}

	c.sent++
	c.pending = append(c.pending, c.engine.newFrame(c, c.sent, c.outFormat, data))

	return nil
}

func (c *Context) ReceiveFrame() (engine.Frame, error) { //nolint:ireturn // Interface boundary.
	if !c.opened || c.Closed() {
		return nil, errors.New("enginetest: context not open")
	}

	if len(c.ReceiveErrs) > 0 {
		err := c.ReceiveErrs[0]
		c.ReceiveErrs = c.ReceiveErrs[1:]

		if err != nil {
			return nil, err
		}
	}

	if len(c.pending) == 0 {
		return nil, engine.ErrAgain
	}

	f := c.pending[0]
	c.pending = c.pending[1:]
	c.received++

	return f, nil
}

func (c *Context) Close() {
	if c.closed.Swap(true) {
		panic("enginetest: context closed twice")
	}

	for _, f := range c.pending {
		f.Release()
	}

	c.pending = nil

	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
}

// Frame is a fake decoded frame.
type Frame struct {
	engine *Engine
	ctx    *Context

	// Seq is the 1-based index of the packet that produced the frame.
	Seq int
	// Data is a copy of that packet.
	Data []byte
	// Format is the frame's pixel format.
	Format engine.PixelFormat
	// Hardware is true for device-resident frames.
	Hardware bool

	released atomic.Bool
}

func (e *Engine) newFrame(c *Context, seq int, pf engine.PixelFormat, data []byte) *Frame {
	e.liveFrames.Add(1)

	return &Frame{
		engine:   e,
		ctx:      c,
		Seq:      seq,
		Data:     append([]byte(nil), data...),
		Format:   pf,
		Hardware: c.hwOutput,
	}
}

func (f *Frame) PixelFormat() engine.PixelFormat { return f.Format }
func (f *Frame) Width() int                      { return FrameWidth }
func (f *Frame) Height() int                     { return FrameHeight }

func (f *Frame) TransferToHost() (engine.Frame, error) { //nolint:ireturn // Interface boundary.
	f.engine.transfers.Add(1)

	if !f.Hardware {
		return nil, errors.New("enginetest: not a hardware frame")
	}

	if len(f.ctx.TransferErrs) > 0 {
		err := f.ctx.TransferErrs[0]
		f.ctx.TransferErrs = f.ctx.TransferErrs[1:]

		if err != nil {
			return nil, err
		}
	} else if f.ctx.TransferErr != nil {
		return nil, f.ctx.TransferErr
	}

	f.engine.liveFrames.Add(1)

	return &Frame{
		engine: f.engine,
		ctx:    f.ctx,
		Seq:    f.Seq,
		Data:   f.Data,
		Format: f.engine.HostPixelFormat,
	}, nil
}

// Image returns a gray image whose luma is the frame's sequence number.
func (f *Frame) Image() (image.Image, error) {
	if f.Hardware {
		return nil, errors.New("enginetest: hardware frames have no host image")
	}

	img := image.NewGray(image.Rect(0, 0, FrameWidth, FrameHeight))
	for i := range img.Pix {
		img.Pix[i] = uint8(f.Seq) //nolint:gosec // Wraparound is fine for a test pattern.
	}

	return img, nil
}

func (f *Frame) Release() {
	if f.released.Swap(true) {
		panic("enginetest: frame released twice")
	}

	f.engine.liveFrames.Add(-1)
}
