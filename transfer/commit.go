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

package transfer

import (
	"github.com/sabouaram/iftpfm/logging"
	"github.com/sabouaram/iftpfm/protocol"
)

// commit implements the rename-with-fallback protocol: try the direct
// rename; if the target already exists, remove it and retry once; verify
// the final size either way. Neither FTP nor SFTP offers an atomic
// replace, so the fallback opens a brief window where the target is
// absent and the temp file persists.
func commit(dst protocol.Client, tmpName, finalName string, expectedSize int64, log *logging.Logger) bool {
	if err := dst.Rename(tmpName, finalName); err != nil {
		if rmErr := dst.Rm(finalName); rmErr == nil {
			log.Info("replaced existing file %s", finalName)
		}

		if err := dst.Rename(tmpName, finalName); err != nil {
			log.Error("error renaming temporary file %s to %s: %s", tmpName, finalName, err.Error())
			_ = dst.Rm(tmpName)
			return false
		}
	}

	actual, err := dst.Size(finalName)
	if err != nil || actual != expectedSize {
		log.Error("final file verification failed for %s: expected %d bytes", finalName, expectedSize)
		return false
	}

	log.Info("final file verification passed: %s is %d bytes", finalName, actual)
	return true
}
