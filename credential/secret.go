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

// Package credential holds short-lived secret material (passwords,
// passphrases, private key bytes) in a container that never prints its
// contents and can be wiped explicitly once the connection handshake that
// needed it is done.
package credential

import "runtime"

// Secret wraps a byte slice that must never reach a log line. String and
// GoString are overridden so a stray %v/%s in a format string cannot leak
// it.
type Secret struct {
	b []byte
}

// NewSecret copies s into a Secret-owned buffer.
func NewSecret(s string) *Secret {
	if s == "" {
		return &Secret{}
	}

	c := &Secret{b: []byte(s)}
	runtime.SetFinalizer(c, func(x *Secret) { x.Wipe() })

	return c
}

// Empty reports whether the secret carries no bytes.
func (s *Secret) Empty() bool {
	return s == nil || len(s.b) == 0
}

// Expose returns the secret as a string for handing to a library call
// (e.g. ftp.Login, ssh.Password). Callers must not retain the result.
func (s *Secret) Expose() string {
	if s == nil {
		return ""
	}

	return string(s.b)
}

// Wipe overwrites the backing array with zero bytes. Safe to call more
// than once.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}

	for i := range s.b {
		s.b[i] = 0
	}

	s.b = nil
}

func (s *Secret) String() string {
	return "credential.Secret(REDACTED)"
}

func (s *Secret) GoString() string {
	return "credential.Secret(REDACTED)"
}
