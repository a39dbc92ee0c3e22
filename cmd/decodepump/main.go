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

// decodepump decodes an H.264 or HEVC elementary stream, optionally on a
// hardware accelerator, and keeps a JPEG snapshot of the newest frame.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/TurbineOne/decode-pump/pkg/decoder"
	"github.com/TurbineOne/decode-pump/pkg/engine/libav"
	"github.com/TurbineOne/decode-pump/pkg/interrupt"
	"github.com/TurbineOne/decode-pump/pkg/mimer"
	"github.com/TurbineOne/decode-pump/pkg/pump"
	"github.com/TurbineOne/decode-pump/pkg/snapshot"
	"github.com/TurbineOne/decode-pump/pkg/source"
)

const codecAuto = "auto"

var log zerolog.Logger //nolint:gochecknoglobals // Don't care.

func main() {
	initConfig() // May early exit if config init fails.

	if err := run(); err != nil {
		log.Error().Err(err).Msg("decodepump failed")
		os.Exit(1)
	}
}

// resolveCodec replaces the "auto" codec with the one sniffed from the input.
func resolveCodec(c *mainConfig) error {
	if c.Decoder.Codec != codecAuto {
		return nil
	}

	if !source.IsFile(c.Source.Input) {
		return fmt.Errorf("codec %q needs a file input, not %s", codecAuto, c.Source.Input)
	}

	mediaType := mimer.GetContentType(c.Source.Input)

	name, err := mimer.CodecName(mediaType)
	if err != nil {
		return fmt.Errorf("detecting codec of [%s] failed: %w", c.Source.Input, err)
	}

	log.Info().Str("mediaType", mediaType).Str("codec", name).Msg("detected codec")
	c.Decoder.Codec = name

	return nil
}

// serveHealth serves the gRPC health service on a unix socket. The returned
// function stops it. An empty socket disables serving, but the health server
// is still returned so status updates need no special casing.
func serveHealth(socket string) (*health.Server, func(), error) {
	if socket == "" {
		return health.NewServer(), func() {}, nil
	}

	if err := os.RemoveAll(socket); err != nil {
		log.Error().Err(err).Msg("failed to remove existing socket")
	}

	l, err := net.Listen("unix", socket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on socket [%s]: %w", socket, err)
	}

	hs := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	go func() {
		log.Info().Str("socket", socket).Msg("starting health server")

		if err := server.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	stop := func() {
		hs.Shutdown()
		server.Stop()
		_ = os.Remove(socket)
	}

	return hs, stop, nil
}

func run() error {
	if err := libav.SetupLogging(&log, currentConfig.FFmpegLogLevel); err != nil {
		return err
	}

	if err := resolveCodec(&currentConfig); err != nil {
		return err
	}

	codec, err := decoder.ParseCodec(currentConfig.Decoder.Codec)
	if err != nil {
		return err
	}

	src, err := source.Open(&currentConfig.Source, codec.EngineCodecID(), &log)
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	hs, stopHealth, err := serveHealth(currentConfig.Health.Socket)
	if err != nil {
		return err
	}

	defer stopHealth()

	sink := snapshot.New(&currentConfig.Snapshot, &log)
	p := pump.New(&currentConfig.Pump, src, sink, &log)

	dec, err := decoder.Open(libav.New(), &currentConfig.Decoder, &log, p.FrameAvailable)
	if err != nil {
		return err
	}

	defer dec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := interrupt.Run(ctx); err != nil && ctx.Err() == nil {
			log.Info().Err(err).Msg("shutting down")
		}

		cancel()
	}()

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	log.Info().Str("codec", dec.Codec().String()).Bool("hwActive", dec.HardwareActive()).
		Str("pixFmt", string(dec.PixelFormat())).Msg("decoding")

	err = p.Run(ctx, dec)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	log.Info().Object("stats", p.Stats()).Uint64("snapshots", sink.Writes()).
		Bool("hwActive", dec.HardwareActive()).Msg("decoding stopped")

	return err
}
