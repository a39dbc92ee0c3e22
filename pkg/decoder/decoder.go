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

// Package decoder turns a stream of encoded access units into decoded frames,
// optionally using a hardware accelerator.
//
// A Decoder is fed from one goroutine and pulled from another. Every call
// into the engine happens under the Decoder's lock. Feed drains a frame when
// the engine's input queue is full, and Pull drains everything that is ready
// and returns only the newest frame, so neither side builds a backlog when the
// other is slow.
package decoder

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astikit"
	"github.com/rs/zerolog"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

const (
	lCodec       = "codec"
	lDecoder     = "decoder"
	lDeviceType  = "deviceType"
	lDrained     = "drained"
	lEngineCodec = "engineCodec"
	lHwAccel     = "hwAccel"
	lMethods     = "methods"
	lPixFmt      = "pixFmt"
	lCandidates  = "candidates"
	lSize        = "size"
	lState       = "state"
)

// State is the lifecycle state of a Decoder.
type State int

const (
	StateUninitialized State = iota
	StateEngineAllocated
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateEngineAllocated:
		return "engineAllocated"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// FrameAvailableFunc is called after every successful Feed, outside the
// Decoder's lock, to tell a consumer that Pull may return a frame.
type FrameAvailableFunc func(d *Decoder)

// Decoder owns one engine decoding context and, optionally, one hardware
// device. Feed and Pull may be called concurrently; Init and Close may not.
type Decoder struct {
	config           *Config
	engine           engine.Engine
	log              zerolog.Logger
	onFrameAvailable FrameAvailableFunc

	// lock guards everything below and every call into ctx.
	lock  sync.Mutex
	state State
	codec Codec
	ctx   engine.CodecContext

	// hwDevice is non-nil only while hardware decoding is active.
	hwDevice engine.HardwareDevice
	hwPixFmt engine.PixelFormat

	// closer releases, newest first, everything Init acquired.
	closer *astikit.Closer
}

// New returns an uninitialized Decoder. onFrameAvailable may be nil.
func New(eng engine.Engine, config *Config, logger *zerolog.Logger,
	onFrameAvailable FrameAvailableFunc,
) *Decoder {
	log := logger.With().Str("pkg", "decoder").Logger()

	if config.LogLevel != "" && config.LogLevel != ConfigDefault().LogLevel {
		level, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			panic(err.Error())
		}

		log = log.Level(level)
	}

	return &Decoder{
		config:           config,
		engine:           eng,
		log:              log,
		onFrameAvailable: onFrameAvailable,
		hwPixFmt:         engine.PixelFormatNone,
	}
}

// Open is New followed by Init. It returns no Decoder if Init fails.
func Open(eng engine.Engine, config *Config, logger *zerolog.Logger,
	onFrameAvailable FrameAvailableFunc,
) (*Decoder, error) {
	d := New(eng, config, logger, onFrameAvailable)
	if err := d.Init(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Decoder) MarshalZerologObject(e *zerolog.Event) {
	e.Str(lCodec, d.codec.String()).
		Str(lState, d.state.String()).
		Str(lHwAccel, d.config.HwAccel).
		Bool("hwActive", d.hwDevice != nil).
		Str(lPixFmt, string(d.hwPixFmt))
}

// Init resolves the codec, allocates the engine context, negotiates the
// hardware accelerator if one is configured, and opens the context.
// On failure, everything acquired so far is released and the Decoder stays
// uninitialized. A configured accelerator that cannot be used is an error;
// Init never quietly decodes in software instead.
func (d *Decoder) Init() (err error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.state != StateUninitialized {
		return &alreadyInitializedError{d.state}
	}

	closer := astikit.NewCloser()

	defer func() {
		if err != nil {
			d.log.Error().Err(err).Str(lCodec, d.config.Codec).Str(lHwAccel, d.config.HwAccel).
				Msg("decoder init failed")

			_ = closer.Close()

			d.ctx = nil
			d.hwDevice = nil
			d.hwPixFmt = engine.PixelFormatNone
			d.state = StateUninitialized
		}
	}()

	if d.codec, err = ParseCodec(d.config.Codec); err != nil {
		return err
	}

	codecID := d.codec.EngineCodecID()

	decCodec, err := d.engine.FindDecoder(codecID)
	if err != nil {
		return &CodecUnavailableError{Codec: d.codec, Err: err}
	}

	if d.ctx, err = decCodec.NewContext(); err != nil {
		return fmt.Errorf("allocating codec context failed: %w", err)
	}

	closer.Add(d.ctx.Close)
	d.state = StateEngineAllocated

	if d.config.HwAccel != "" {
		if err = d.initHardware(decCodec, closer); err != nil {
			return err
		}
	}

	if err = d.ctx.Open(); err != nil {
		return fmt.Errorf("opening codec context failed: %w", err)
	}

	d.closer = closer
	d.state = StateOpen

	d.log.Info().Str(lDecoder, decCodec.Name()).Str(lEngineCodec, codecID.String()).
		Object("ctx", d).Msg("decoder open")

	return nil
}

// Close closes the engine context and releases the hardware device if one is
// still held. It must be called once, after a successful Init, with no Feed
// or Pull in flight.
func (d *Decoder) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.state != StateOpen {
		d.log.Warn().Str(lState, d.state.String()).Msg("close of a decoder that is not open")

		return
	}

	if err := d.closer.Close(); err != nil {
		d.log.Warn().Err(err).Msg("decoder close failed")
	}

	d.ctx = nil
	d.closer = nil
	d.state = StateClosed

	d.log.Debug().Str(lCodec, d.codec.String()).Msg("decoder closed")
}

// State returns the lifecycle state.
func (d *Decoder) State() State {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.state
}

// Codec returns the codec resolved at Init.
func (d *Decoder) Codec() Codec {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.codec
}

// HardwareActive reports whether frames are currently decoded in hardware.
// It turns false if the engine stops offering the hardware format mid-stream.
func (d *Decoder) HardwareActive() bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.hwDevice != nil
}

// HardwarePixelFormat returns the accelerator's native pixel format, or
// engine.PixelFormatNone if no accelerator was negotiated.
func (d *Decoder) HardwarePixelFormat() engine.PixelFormat {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.hwPixFmt
}

// PixelFormat returns the expected pixel format of pulled frames.
func (d *Decoder) PixelFormat() engine.PixelFormat {
	d.lock.Lock()
	defer d.lock.Unlock()

	return PixelFormat(d.hwDevice != nil)
}
