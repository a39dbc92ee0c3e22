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
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/TurbineOne/decode-pump/pkg/annexb"
	"github.com/TurbineOne/decode-pump/pkg/engine"
)

const (
	readBufferSize = 1 << 16
	maxNALUnitSize = 16 << 20
)

type accessUnit struct {
	data []byte
	err  error
}

// AnnexB splits an Annex-B byte stream into access units. Reading happens
// on its own goroutine, started by the first Next, so Next returns as soon
// as ctx is done even while the underlying read is blocked.
type AnnexB struct {
	rc        io.ReadCloser
	scanner   *bufio.Scanner
	assembler *annexb.Assembler

	start     sync.Once
	closeOnce sync.Once
	units     chan accessUnit
	stop      chan struct{}
}

// NewAnnexB reads from rc, which AnnexB closes on Close.
func NewAnnexB(rc io.ReadCloser, codec engine.CodecID) *AnnexB {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, readBufferSize), maxNALUnitSize)
	scanner.Split(annexb.SplitNALUnits)

	return &AnnexB{
		rc:        rc,
		scanner:   scanner,
		assembler: annexb.NewAssembler(codec),
		units:     make(chan accessUnit),
		stop:      make(chan struct{}),
	}
}

// Next returns the next access unit. The caller owns it. An access unit read
// while ctx was done is kept for the next call.
func (a *AnnexB) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.start.Do(func() { go a.read() })

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case au, ok := <-a.units:
		if !ok {
			return nil, io.EOF
		}

		return au.data, au.err
	}
}

func (a *AnnexB) read() {
	defer close(a.units)

	send := func(au accessUnit) bool {
		select {
		case a.units <- au:
			return true
		case <-a.stop:
			return false
		}
	}

	for a.scanner.Scan() {
		if au := a.assembler.Push(a.scanner.Bytes()); au != nil {
			if !send(accessUnit{data: au}) {
				return
			}
		}
	}

	if err := a.scanner.Err(); err != nil {
		send(accessUnit{err: fmt.Errorf("reading annex-b stream failed: %w", err)})

		return
	}

	if au := a.assembler.Flush(); au != nil {
		send(accessUnit{data: au})
	}
}

// Close stops the reader and closes the underlying stream.
func (a *AnnexB) Close() error {
	a.closeOnce.Do(func() { close(a.stop) })

	return a.rc.Close()
}
