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

// Package transfer implements the per-rule session lifecycle: connect,
// authenticate, filter, stage, transfer, verify, commit, optionally
// delete. Grounded on original_source/src/ftp_ops.rs.
package transfer

import "time"

// Options bundles the parameters the outer sequence needs beyond the
// rule itself.
type Options struct {
	WorkerID           int
	DeleteOnSuccess    bool
	ConnectTimeout     time.Duration
	ScratchDir         string
	RAMThreshold       int64
	InsecureSkipVerify bool
}

// Result is the per-rule tally the engine returns. Err is set only when
// session setup failed before any file could be listed; per-file
// failures are logged and skipped rather than surfaced here.
type Result struct {
	Transferred int
	Listed      int
	Err         error
}
