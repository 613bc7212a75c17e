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

// Package logging is a thin, thread-safe line-logging sink built on
// logrus: one timestamped line per record, an optional per-worker tag,
// and a debug flag that makes Debug a no-op until explicitly enabled.
package logging

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Output selects where log lines go.
type Output interface{ apply(*Logger) }

type ToStdout struct{}

func (ToStdout) apply(l *Logger) {
	l.base.SetOutput(os.Stdout)
}

type ToFile struct{ Path string }

func (o ToFile) apply(l *Logger) {
	f, err := os.OpenFile(o.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging: cannot open log file, falling back to stderr:", err)
		l.base.SetOutput(os.Stderr)
		return
	}

	l.mu.Lock()
	l.file = f
	l.writer = bufio.NewWriter(f)
	l.mu.Unlock()

	l.base.SetOutput(&flushingWriter{l: l})
}

// Logger is the shared sink. Create one with New and derive per-worker
// copies with ForWorker.
type Logger struct {
	base  *logrus.Logger
	tag   string
	debug atomic.Bool

	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	warnedErr atomic.Bool
}

// New builds a Logger writing to the given Output.
func New(out Output) *Logger {
	l := &Logger{base: logrus.New()}
	l.base.SetFormatter(&lineFormatter{})
	out.apply(l)
	return l
}

// SetDebug toggles whether Debug emits anything.
func (l *Logger) SetDebug(v bool) { l.debug.Store(v) }

// ForWorker returns a shallow copy tagging every record with [Tn].
func (l *Logger) ForWorker(id int) *Logger {
	cp := *l
	cp.tag = fmt.Sprintf("T%d", id)
	return &cp
}

func (l *Logger) entry() *logrus.Entry {
	if l.tag == "" {
		return logrus.NewEntry(l.base)
	}
	return l.base.WithField(tagField, l.tag)
}

func (l *Logger) Info(format string, args ...any)  { l.entry().Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warn(format string, args ...any)  { l.entry().Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Error(format string, args ...any) { l.entry().Error(fmt.Sprintf(format, args...)) }

// Debug is a no-op unless SetDebug(true) was called.
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug.Load() {
		return
	}
	l.entry().Debug(fmt.Sprintf(format, args...))
}

const tagField = "worker"

// flushingWriter serializes writes under l.mu and flushes after each
// record, tolerating and reporting (once) any write failure instead of
// letting it escape the logging call.
type flushingWriter struct{ l *Logger }

func (w *flushingWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()

	n, err := w.l.writer.Write(p)
	if err == nil {
		err = w.l.writer.Flush()
	}

	if err != nil && w.l.warnedErr.CompareAndSwap(false, true) {
		fmt.Fprintln(os.Stderr, "logging: write failure:", err)
	}

	return n, nil
}
