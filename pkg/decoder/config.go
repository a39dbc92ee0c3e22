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

// Config configures a Decoder.
type Config struct { //nolint:govet // Don't care about alignment.
	Codec    string `yaml:"codec" json:"codec" env:"CODEC" doc:"Stream codec. One of: h264, h265, h265_hdr, auto"`
	HwAccel  string `yaml:"hwAccel" json:"hwAccel" env:"HW_ACCEL" doc:"Hardware accelerator name, e.g. vaapi, cuda, videotoolbox. Empty decodes in software."`
	LogLevel string `yaml:"logLevel" json:"logLevel" env:"LOG_LEVEL" doc:"Decoder log level, overriding the global level"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Codec:    CodecH264.String(),
		HwAccel:  "",
		LogLevel: "info",
	}
}
