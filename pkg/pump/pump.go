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

// Package pump runs a decoder between a source of access units and a sink
// of decoded frames. A feeder goroutine moves access units from the source
// into the decoder, and a puller goroutine, woken by the decoder's
// frame-available callback, hands the newest frame to the sink.
package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/TurbineOne/decode-pump/pkg/decoder"
	"github.com/TurbineOne/decode-pump/pkg/engine"
)

const (
	lStats = "stats"
)

// Config configures a Pump.
type Config struct { //nolint:govet // Don't care about alignment.
	FeedInterval time.Duration `yaml:"feedInterval" json:"feedInterval" env:"FEED_INTERVAL" doc:"Delay between access units, e.g. 33ms to replay a file at 30 fps. Zero feeds as fast as the decoder accepts."`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		FeedInterval: 0,
	}
}

// Source yields encoded access units and io.EOF at the end of the stream.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// Sink presents decoded frames. It must not retain the frame after
// WriteFrame returns.
type Sink interface {
	WriteFrame(frame engine.Frame) error
}

// Decoder is the part of decoder.Decoder the pump drives.
type Decoder interface {
	Feed(buf []byte) bool
	Pull() engine.Frame
}

// Stats counts what the pump has done so far.
type Stats struct {
	Fed          uint64
	FeedFailures uint64
	Pulled       uint64
	EmptyPulls   uint64
	SinkErrors   uint64
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("fed", s.Fed).
		Uint64("feedFailures", s.FeedFailures).
		Uint64("pulled", s.Pulled).
		Uint64("emptyPulls", s.EmptyPulls).
		Uint64("sinkErrors", s.SinkErrors)
}

// Pump connects a Source, a Decoder and a Sink.
type Pump struct {
	config *Config
	log    zerolog.Logger
	source Source
	sink   Sink

	// signal holds at most one pending wakeup for the puller.
	signal chan struct{}

	fed          atomic.Uint64
	feedFailures atomic.Uint64
	pulled       atomic.Uint64
	emptyPulls   atomic.Uint64
	sinkErrors   atomic.Uint64
}

// New returns a Pump. Pass its FrameAvailable method to the decoder.
func New(config *Config, source Source, sink Sink, logger *zerolog.Logger) *Pump {
	return &Pump{
		config: config,
		log:    logger.With().Str("pkg", "pump").Logger(),
		source: source,
		sink:   sink,
		signal: make(chan struct{}, 1),
	}
}

// FrameAvailable is the decoder's frame-available callback. It never blocks.
func (p *Pump) FrameAvailable(*decoder.Decoder) {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the counters.
func (p *Pump) Stats() Stats {
	return Stats{
		Fed:          p.fed.Load(),
		FeedFailures: p.feedFailures.Load(),
		Pulled:       p.pulled.Load(),
		EmptyPulls:   p.emptyPulls.Load(),
		SinkErrors:   p.sinkErrors.Load(),
	}
}

// Run pumps until the source ends or ctx is done. Both goroutines have
// exited when Run returns, so dec may be closed right after. A source ending
// with io.EOF or by cancellation is not an error.
func (p *Pump) Run(ctx context.Context, dec Decoder) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		feedErr  error
		feedDone = make(chan struct{})
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(feedDone)

		feedErr = p.feed(ctx, dec)
	}()

	go func() {
		defer wg.Done()

		p.pullLoop(dec, feedDone)
	}()

	wg.Wait()

	// Catch whatever the last Feed produced after the puller stopped.
	p.pullOnce(dec)

	p.log.Info().Err(feedErr).Object(lStats, p.Stats()).Msg("pump stopped")

	return feedErr
}

func (p *Pump) feed(ctx context.Context, dec Decoder) error {
	var ticker *time.Ticker

	if p.config.FeedInterval > 0 {
		ticker = time.NewTicker(p.config.FeedInterval)
		defer ticker.Stop()
	}

	for {
		au, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Info().Msg("source finished")

				return nil
			}

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("source failed: %w", err)
		}

		if dec.Feed(au) {
			p.fed.Add(1)
		} else {
			p.feedFailures.Add(1)
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Pump) pullLoop(dec Decoder, feedDone <-chan struct{}) {
	for {
		select {
		case <-p.signal:
			p.pullOnce(dec)

		case <-feedDone:
			return
		}
	}
}

func (p *Pump) pullOnce(dec Decoder) {
	frame := dec.Pull()
	if frame == nil {
		p.emptyPulls.Add(1)

		return
	}

	defer frame.Release()

	p.pulled.Add(1)

	if p.sink == nil {
		return
	}

	if err := p.sink.WriteFrame(frame); err != nil {
		p.sinkErrors.Add(1)
		p.log.Warn().Err(err).Msg("sink failed to write frame")
	}
}
