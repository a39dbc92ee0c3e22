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

package libav

import (
	"fmt"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

const (
	lClass   = "class"
	lSquelch = "squelchCount"

	squelchedLogInterval = 256 // log every Nth repeat
)

// levelToZerolog maps FFmpeg log levels onto zerolog's. FFmpeg has more
// levels than zerolog, so verbose and debug shift down by one.
var levelToZerolog = map[astiav.LogLevel]zerolog.Level{
	astiav.LogLevelQuiet:   zerolog.Disabled,
	astiav.LogLevelPanic:   zerolog.PanicLevel,
	astiav.LogLevelFatal:   zerolog.FatalLevel,
	astiav.LogLevelError:   zerolog.ErrorLevel,
	astiav.LogLevelWarning: zerolog.WarnLevel,
	astiav.LogLevelInfo:    zerolog.InfoLevel,
	astiav.LogLevelVerbose: zerolog.DebugLevel,
	astiav.LogLevelDebug:   zerolog.TraceLevel,
}

// levelNames is only used to translate the config value at startup.
var levelNames = map[string]astiav.LogLevel{
	"quiet":   astiav.LogLevelQuiet,
	"panic":   astiav.LogLevelPanic,
	"fatal":   astiav.LogLevelFatal,
	"error":   astiav.LogLevelError,
	"warning": astiav.LogLevelWarning,
	"info":    astiav.LogLevelInfo,
	"verbose": astiav.LogLevelVerbose,
	"debug":   astiav.LogLevelDebug,
}

// squelchedPrefixes are decoder messages that repeat for every damaged access
// unit of a lossy live stream. Left alone they flood the log.
var squelchedPrefixes = []string{
	"error while decoding MB",
	"concealing",
	"Invalid NAL unit size",
	"no frame!",
	"non-existing PPS",
	"Could not find ref with POC",
	"deprecated pixel format used",
}

type logBridge struct {
	log zerolog.Logger

	lock   sync.Mutex
	counts []int
}

func (b *logBridge) callback(c astiav.Classer, l astiav.LogLevel, _, msg string) {
	if msg == ".\n" {
		return
	}

	squelchCount := 0

	for i, prefix := range squelchedPrefixes {
		if !strings.HasPrefix(strings.TrimSpace(msg), prefix) {
			continue
		}

		b.lock.Lock()
		b.counts[i]++
		squelchCount = b.counts[i]
		b.lock.Unlock()

		if squelchCount%squelchedLogInterval != 1 {
			return
		}

		break
	}

	zl, ok := levelToZerolog[l]
	if !ok {
		zl = zerolog.ErrorLevel
	}

	event := b.log.WithLevel(zl)
	if c != nil {
		if cl := c.Class(); cl != nil {
			event = event.Str(lClass, cl.Name())
		}
	}

	if squelchCount > 0 {
		event = event.Int(lSquelch, squelchCount)
	}

	event.Msg(strings.TrimSuffix(msg, "\n"))
}

// SetupLogging routes FFmpeg's log output into logger. FFmpeg messages are
// filtered twice: by level here, then by logger's own level.
func SetupLogging(logger *zerolog.Logger, level string) error {
	avLevel, ok := levelNames[level]
	if !ok {
		return fmt.Errorf("invalid ffmpeg log level %q", level)
	}

	b := &logBridge{
		log:    logger.With().Str("pkg", "ffmpeg").Logger(),
		counts: make([]int, len(squelchedPrefixes)),
	}

	astiav.SetLogLevel(avLevel)
	astiav.SetLogCallback(b.callback)

	return nil
}
