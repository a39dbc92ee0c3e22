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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/TurbineOne/decode-pump/pkg/annexb"
	"github.com/TurbineOne/decode-pump/pkg/decoder"
	"github.com/TurbineOne/decode-pump/pkg/source"
)

func TestResolveCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(path, annexb.Join([][]byte{
		{0x40, 0x01, 0x0c, 0x01, 0xff},
		{0x26, 0x01, 0xaf, 0x11},
	}), 0o600))

	c := mainConfig{Source: source.Config{Input: path}, Decoder: decoder.ConfigDefault()}
	c.Decoder.Codec = codecAuto

	require.NoError(t, resolveCodec(&c))
	assert.Equal(t, "h265", c.Decoder.Codec)

	// An explicit codec is left alone.
	require.NoError(t, resolveCodec(&c))
	assert.Equal(t, "h265", c.Decoder.Codec)

	c.Decoder.Codec = codecAuto
	c.Source.Input = "-"
	require.Error(t, resolveCodec(&c))

	garbage := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("not video"), 0o600))

	c.Source.Input = garbage
	require.Error(t, resolveCodec(&c))
}

func TestServeHealth(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "health.sock")

	hs, stop, err := serveHealth(socket)
	require.NoError(t, err)

	defer stop()

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	conn, err := grpc.NewClient("unix://"+socket, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, stopNone, err := serveHealth("")
	require.NoError(t, err)
	stopNone()
}
