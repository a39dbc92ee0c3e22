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

// Package interrupt waits for the signals that should stop the process.
package interrupt

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Signals are the signals Run waits for.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM} //nolint:gochecknoglobals // Read-only.

// SignalError reports the signal that ended Run.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Run blocks until one of Signals arrives, returning a *SignalError, or
// until ctx is done, returning ctx.Err().
func Run(ctx context.Context) error {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, Signals...)

	defer signal.Stop(sigC)

	select {
	case sig := <-sigC:
		return &SignalError{Signal: sig}
	case <-ctx.Done():
		return ctx.Err()
	}
}
