/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package shutdown holds the process-wide cancellation flag every
// cooperative loop in the engine consults between units of work. The
// handler wired to an OS signal is restricted to a single atomic store:
// no allocation, no logging, no I/O.
package shutdown

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// SignalKind classifies which signal triggered a shutdown request.
type SignalKind int32

const (
	KindNone SignalKind = iota
	KindInterrupt
	KindTerminate
)

func (k SignalKind) String() string {
	switch k {
	case KindInterrupt:
		return "interrupt"
	case KindTerminate:
		return "terminate"
	default:
		return "none"
	}
}

// Coordinator is the process-wide shutdown flag. The zero value is ready
// to use.
type Coordinator struct {
	requested atomic.Bool
	kind      atomic.Int32
}

// Request flips the flag with an unspecified signal kind.
func (c *Coordinator) Request() {
	c.RequestWithKind(KindNone)
}

// RequestWithKind flips the flag and records which signal caused it. Only
// the first call's kind sticks; later calls still set requested but do
// not overwrite an already-recorded kind.
func (c *Coordinator) RequestWithKind(k SignalKind) {
	if c.requested.CompareAndSwap(false, true) {
		c.kind.Store(int32(k))
	}
}

// IsRequested reports whether shutdown has been requested.
func (c *Coordinator) IsRequested() bool {
	return c.requested.Load()
}

// Kind returns the recorded signal kind, or KindNone if not yet requested.
func (c *Coordinator) Kind() SignalKind {
	return SignalKind(c.kind.Load())
}

// reset clears the flag and the recorded kind.
func (c *Coordinator) reset() {
	c.requested.Store(false)
	c.kind.Store(int32(KindNone))
}

// Watcher logs, once, the first observed shutdown request. The
// interpretation and the log write happen here rather than in the signal
// handler itself, per the async-signal-safety rule.
type Watcher struct {
	Poll   time.Duration
	Logger func(msg string)
}

// Watch blocks until ctx is done or a shutdown request is observed, in
// which case it logs the signal kind exactly once and returns.
func (w Watcher) Watch(ctx context.Context, c *Coordinator) {
	poll := w.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	t := time.NewTicker(poll)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.IsRequested() {
				if w.Logger != nil {
					w.Logger(fmt.Sprintf("received signal %s, shutting down", c.Kind()))
				}
				return
			}
		}
	}
}
