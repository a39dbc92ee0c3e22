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

	"github.com/asticode/go-astikit"
	"golang.org/x/exp/slices"

	"github.com/TurbineOne/decode-pump/pkg/engine"
)

// findHardwareConfig returns the first configuration of codec that drives
// deviceType through a device context.
func findHardwareConfig(codec engine.Codec, deviceType string) (engine.HardwareConfig, bool) {
	for _, cfg := range codec.HardwareConfigs() {
		if cfg.Methods.Has(engine.HardwareConfigMethodHWDeviceCtx) && cfg.DeviceType == deviceType {
			return cfg, true
		}
	}

	return engine.HardwareConfig{}, false
}

// initHardware negotiates the configured accelerator with codec and attaches
// a device to d.ctx. The device is released through closer.
// The caller must hold d.lock.
func (d *Decoder) initHardware(codec engine.Codec, closer *astikit.Closer) error {
	name := d.config.HwAccel

	if !d.engine.HardwareDeviceTypeKnown(name) {
		return &HardwareNotFoundError{Name: name}
	}

	cfg, ok := findHardwareConfig(codec, name)
	if !ok {
		return &HardwareUnsupportedError{Name: name, Decoder: codec.Name()}
	}

	dev, err := d.engine.CreateHardwareDevice(name)
	if err != nil {
		return fmt.Errorf("creating %s hardware device failed: %w", name, err)
	}

	d.hwDevice = dev
	d.hwPixFmt = cfg.PixelFormat

	closer.Add(d.releaseHardware)

	d.ctx.SetHardwareDevice(dev)
	d.ctx.SetFormatSelector(d.selectPixelFormat)

	d.log.Debug().Str(lDeviceType, name).Uint(lMethods, uint(cfg.Methods)).
		Str(lPixFmt, string(cfg.PixelFormat)).Msg("hardware device attached")

	return nil
}

// releaseHardware drops our device reference, if we still hold one.
// The caller must hold d.lock.
func (d *Decoder) releaseHardware() {
	if d.hwDevice == nil {
		return
	}

	d.hwDevice.Release()
	d.hwDevice = nil
}

// selectPixelFormat is installed as the engine's format selector. The engine
// calls it from inside SendPacket or ReceiveFrame, so d.lock is already held
// by Feed or Pull and must not be taken here.
//
// If the engine no longer offers the hardware format, the device is detached
// and released, and decoding continues in software for the rest of the
// session.
func (d *Decoder) selectPixelFormat(candidates []engine.PixelFormat) engine.PixelFormat {
	if d.hwDevice != nil && slices.Contains(candidates, d.hwPixFmt) {
		return d.hwPixFmt
	}

	if d.hwDevice != nil {
		d.log.Warn().Str(lDeviceType, d.hwDevice.DeviceType()).Str(lPixFmt, string(d.hwPixFmt)).
			Interface(lCandidates, candidates).
			Msg("hardware pixel format not offered, falling back to software decoding")

		d.ctx.SetHardwareDevice(nil)
		d.releaseHardware()
	}

	return PixelFormat(false)
}
