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

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/rs/zerolog"
)

const (
	// pollInterval bounds how long Next blocks before rechecking its context.
	pollInterval = 200 * time.Millisecond

	maxDatagramSize = 1 << 16
)

// RTP receives H.264 over RTP (RFC 6184) and yields one access unit per RTP
// timestamp. An access unit ends on the marker bit or when the timestamp
// changes. Packets are not reordered: an access unit with a sequence gap is
// dropped.
type RTP struct {
	conn net.PacketConn
	log  zerolog.Logger
	buf  []byte

	depacketizer *codecs.H264Packet
	au           []byte
	auTimestamp  uint32
	haveTS       bool
	lastSeq      uint16
	haveSeq      bool
	broken       bool
	ready        [][]byte

	dropped atomic.Int64
}

// ListenRTP listens for RTP on the UDP address addr.
func ListenRTP(addr string, logger *zerolog.Logger) (*RTP, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for rtp on [%s]: %w", addr, err)
	}

	return NewRTP(conn, logger), nil
}

// NewRTP reads RTP from conn, which RTP closes on Close.
func NewRTP(conn net.PacketConn, logger *zerolog.Logger) *RTP {
	r := &RTP{
		conn:         conn,
		log:          logger.With().Str("pkg", "source").Str(lAddr, conn.LocalAddr().String()).Logger(),
		buf:          make([]byte, maxDatagramSize),
		depacketizer: &codecs.H264Packet{},
	}

	r.log.Info().Msg("receiving rtp")

	return r
}

// LocalAddr returns the address RTP is received on.
func (r *RTP) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// Dropped returns how many access units were dropped because of packet loss.
func (r *RTP) Dropped() int {
	return int(r.dropped.Load())
}

// Next returns the next complete access unit. It returns io.EOF once the
// connection is closed.
func (r *RTP) Next(ctx context.Context) ([]byte, error) {
	for {
		if len(r.ready) > 0 {
			au := r.ready[0]
			r.ready = r.ready[1:]

			return au, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}

			return nil, fmt.Errorf("setting rtp read deadline failed: %w", err)
		}

		n, _, err := r.conn.ReadFrom(r.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}

			return nil, fmt.Errorf("reading rtp failed: %w", err)
		}

		r.handlePacket(r.buf[:n])
	}
}

func (r *RTP) handlePacket(b []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		r.log.Warn().Err(err).Int(lSize, len(b)).Msg("ignoring malformed rtp packet")

		return
	}

	gap := r.haveSeq && pkt.SequenceNumber != r.lastSeq+1
	r.lastSeq, r.haveSeq = pkt.SequenceNumber, true

	if r.haveTS && pkt.Timestamp != r.auTimestamp {
		// Without a marker, the previous unit may have lost its tail.
		if gap {
			r.broken = true
		}

		r.finish()
	}

	r.auTimestamp, r.haveTS = pkt.Timestamp, true

	// The lost packets may also have started this unit.
	if gap {
		r.log.Warn().Uint16(lSeq, pkt.SequenceNumber).Msg("rtp sequence gap, dropping access unit")
		r.drop()
	}

	nalus, err := r.depacketizer.Unmarshal(pkt.Payload)
	if err != nil {
		r.log.Warn().Err(err).Uint16(lSeq, pkt.SequenceNumber).Msg("depacketizing h264 failed")
		r.drop()
	}

	r.au = append(r.au, nalus...)

	if pkt.Marker {
		r.finish()
	}
}

// finish completes the access unit under way.
func (r *RTP) finish() {
	if len(r.au) > 0 {
		if r.broken {
			r.dropped.Add(1)
		} else {
			r.ready = append(r.ready, append([]byte(nil), r.au...))
		}
	}

	r.au = r.au[:0]
	r.broken = false
}

// drop marks the access unit under way as incomplete and discards any
// half-assembled fragment.
func (r *RTP) drop() {
	r.broken = true
	r.depacketizer = &codecs.H264Packet{}
}

func (r *RTP) Close() error {
	return r.conn.Close()
}
