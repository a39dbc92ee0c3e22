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

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodecIDString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "h264", CodecIDH264.String())
	assert.Equal(t, "hevc", CodecIDHEVC.String())
	assert.Equal(t, "none", CodecIDNone.String())
	assert.Equal(t, "none", CodecID(99).String())
}

func TestHardwareConfigMethodHas(t *testing.T) {
	t.Parallel()

	m := HardwareConfigMethodHWDeviceCtx | HardwareConfigMethodAdHoc

	assert.True(t, m.Has(HardwareConfigMethodHWDeviceCtx))
	assert.True(t, m.Has(HardwareConfigMethodAdHoc))
	assert.True(t, m.Has(HardwareConfigMethodHWDeviceCtx|HardwareConfigMethodAdHoc))
	assert.False(t, m.Has(HardwareConfigMethodHWFramesCtx))
	assert.False(t, m.Has(HardwareConfigMethodHWDeviceCtx|HardwareConfigMethodInternal))
}
