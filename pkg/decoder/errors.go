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
)

// CodecUnavailableError means the engine has no decoder for the codec.
type CodecUnavailableError struct {
	Codec Codec
	Err   error
}

func (e *CodecUnavailableError) Error() string {
	return fmt.Sprintf("%s codec not available: %v", e.Codec, e.Err)
}

func (e *CodecUnavailableError) Unwrap() error {
	return e.Err
}

// HardwareNotFoundError means the platform does not recognize the
// accelerator name.
type HardwareNotFoundError struct {
	Name string
}

func (e *HardwareNotFoundError) Error() string {
	return fmt.Sprintf("hardware decoder %q not found", e.Name)
}

// HardwareUnsupportedError means the decoder advertises no device-context
// configuration for the accelerator.
type HardwareUnsupportedError struct {
	Name    string
	Decoder string
}

func (e *HardwareUnsupportedError) Error() string {
	return fmt.Sprintf("decoder %s does not support device type %s", e.Decoder, e.Name)
}

type alreadyInitializedError struct {
	state State
}

func (e *alreadyInitializedError) Error() string {
	return fmt.Sprintf("decoder already initialized (state %s)", e.state)
}
