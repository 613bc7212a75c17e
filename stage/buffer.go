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

// Package stage implements the transient per-file buffer the transfer
// engine pulls source bytes into before pushing them to the destination:
// either an in-memory byte buffer or an on-disk scratch file, chosen by
// size against a configurable threshold.
package stage

import (
	"bytes"
	"io"
	"os"
)

// Kind names which storage strategy a Buffer uses.
type Kind int

const (
	KindMemory Kind = iota
	KindDisk
)

// Choose implements the staging-strategy invariant: memory iff threshold
// is 0 (always memory) or size is within it, disk otherwise.
func Choose(size, ramThreshold int64) Kind {
	if ramThreshold == 0 || size <= ramThreshold {
		return KindMemory
	}
	return KindDisk
}

// Buffer is the staging area for one file's bytes.
type Buffer interface {
	io.Writer
	// Size returns the number of bytes written so far.
	Size() int64
	// Reader returns a fresh reader over everything written so far. The
	// returned ReadCloser must be closed by the caller; closing it does
	// not close the Buffer itself.
	Reader() (io.ReadCloser, error)
	// Close releases the buffer's resources, unlinking the scratch file
	// on disk (if any).
	Close() error
}

// New allocates a Buffer of the given kind. dir is only used for
// KindDisk.
func New(kind Kind, dir string) (Buffer, error) {
	switch kind {
	case KindDisk:
		return newDiskBuffer(dir)
	default:
		return newMemoryBuffer(), nil
	}
}

type memoryBuffer struct {
	buf bytes.Buffer
}

func newMemoryBuffer() *memoryBuffer {
	return &memoryBuffer{}
}

func (m *memoryBuffer) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memoryBuffer) Size() int64                 { return int64(m.buf.Len()) }

func (m *memoryBuffer) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.buf.Bytes())), nil
}

func (m *memoryBuffer) Close() error {
	m.buf.Reset()
	return nil
}

type diskBuffer struct {
	f    *os.File
	size int64
}

func newDiskBuffer(dir string) (*diskBuffer, error) {
	f, err := os.CreateTemp(dir, "iftpfm-stage-*")
	if err != nil {
		return nil, err
	}

	return &diskBuffer{f: f}, nil
}

func (d *diskBuffer) Write(p []byte) (int, error) {
	n, err := d.f.Write(p)
	d.size += int64(n)
	return n, err
}

func (d *diskBuffer) Size() int64 { return d.size }

func (d *diskBuffer) Reader() (io.ReadCloser, error) {
	r, err := os.Open(d.f.Name())
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (d *diskBuffer) Close() error {
	name := d.f.Name()
	cerr := d.f.Close()
	rerr := os.Remove(name)
	if cerr != nil {
		return cerr
	}
	return rerr
}
