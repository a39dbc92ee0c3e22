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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TurbineOne/decode-pump/pkg/config"
	"github.com/TurbineOne/decode-pump/pkg/decoder"
	"github.com/TurbineOne/decode-pump/pkg/logger"
	"github.com/TurbineOne/decode-pump/pkg/pump"
	"github.com/TurbineOne/decode-pump/pkg/snapshot"
	"github.com/TurbineOne/decode-pump/pkg/source"
)

const (
	configFileName = "config.yaml"
	envPrefix      = "DECODEPUMP_"
)

//nolint:gochecknoglobals // Needed for makefile injection.
var (
	// Version is provided by the makefile.
	Version = "v0"
	// Revision is a git tag provided by the makefile.
	Revision = "0"
	// Created is a date provided by the makefile.
	Created = "0000-00-00"
)

// healthConfig configures the gRPC health service.
type healthConfig struct { //nolint:govet // Don't care about alignment.
	Socket string `yaml:"socket" json:"socket" env:"SOCKET" doc:"Unix socket for the gRPC health service. Empty disables it."`
}

// mainConfig is the master config for the executable.
type mainConfig struct { //nolint:govet // Don't care about alignment.
	Source         source.Config   `yaml:"source" envPrefix:"SOURCE_"`
	Decoder        decoder.Config  `yaml:"decoder" envPrefix:"DECODER_"`
	Pump           pump.Config     `yaml:"pump" envPrefix:"PUMP_"`
	Snapshot       snapshot.Config `yaml:"snapshot" envPrefix:"SNAPSHOT_"`
	Health         healthConfig    `yaml:"health" envPrefix:"HEALTH_"`
	Logger         logger.Config   `yaml:"logger" envPrefix:"LOGGER_"`
	FFmpegLogLevel string          `yaml:"ffmpegLogLevel" env:"FFMPEG_LOG_LEVEL" doc:"FFmpeg log level. One of: quiet, panic, fatal, error, warning, info, verbose, debug"`
}

var currentConfig = mainConfig{ //nolint:gochecknoglobals  // Static config
	Source:         source.ConfigDefault(),
	Decoder:        decoder.ConfigDefault(),
	Pump:           pump.ConfigDefault(),
	Snapshot:       snapshot.ConfigDefault(),
	Health:         healthConfig{Socket: "/tmp/decodepump.sock"},
	Logger:         logger.ConfigDefault(),
	FFmpegLogLevel: "warning",
}

// initConfig initializes the config by calling config.Init() and handling
// the results. May exit the program if there is an error.
func initConfig() {
	err := config.Init(config.Path(configFileName, envPrefix), envPrefix, &currentConfig)
	if err != nil {
		// A missing config file is not fatal. Anything else is.
		ncError := &config.NoConfigError{}
		if !errors.As(err, &ncError) {
			fmt.Fprintln(os.Stderr, err.Error()) //nolint:forbidigo // OK to print here.
			os.Exit(2)
		}
	}

	// "decodepump config" prints the effective config as YAML and exits.
	if len(os.Args) > 1 && os.Args[1] == "config" {
		if err := config.Dump(os.Stdout, &currentConfig); err != nil {
			fmt.Fprintln(os.Stderr, err.Error()) //nolint:forbidigo // OK to print here.
			os.Exit(2)
		}

		os.Exit(0)
	}

	log = logger.New(&currentConfig.Logger)

	binName := filepath.Base(os.Args[0])
	log.Info().Msg(fmt.Sprintf("%s %s rev:%s created:%s", binName, Version, Revision, Created))
	log.Info().Interface("config", &currentConfig).Msg("effective config")

	// If there was no config file, we log it here.
	if err != nil {
		log.Info().Msg(err.Error())
	}
}
