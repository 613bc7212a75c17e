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

// Package protocol unifies FTP, FTPS and SFTP behind a single command
// surface so the transfer engine never imports a wire-protocol library
// directly.
package protocol

import (
	"context"
	"io"
	"time"

	"github.com/sabouaram/iftpfm/config"
	"github.com/sabouaram/iftpfm/credential"
	liberr "github.com/sabouaram/iftpfm/errors"
)

// TransferType selects binary or text mode (FTP/FTPS only; SFTP is always
// binary).
type TransferType int

const (
	TypeBinary TransferType = iota
	TypeASCII
)

// Client is the uniform command surface over FTP, FTPS and SFTP — one
// method per documented operation, with no protocol-specific type ever
// crossing this boundary.
type Client interface {
	// Cwd switches the session's remote directory. SFTP emulates this by
	// verifying the path and remembering it for later calls.
	Cwd(path string) liberr.Error

	// TransferType is a no-op for SFTP.
	TransferType(t TransferType) liberr.Error

	// Nlst lists filenames in path, or the current directory if path is
	// empty. The SFTP client returns regular files only; the FTP/FTPS
	// client returns the server's NLST reply unfiltered, so directory
	// names the server includes are returned too.
	Nlst(path string) ([]string, liberr.Error)

	// Mdtm returns the file's modification time (UTC).
	Mdtm(name string) (time.Time, liberr.Error)

	// Size returns the file's byte length.
	Size(name string) (int64, liberr.Error)

	// Retr opens a read stream for name and hands it to sink; sink's
	// return value (typically a stage.Buffer) is passed back to the
	// caller along with the byte count Retr itself observed.
	Retr(name string, sink func(r io.Reader) (any, error)) (any, int64, liberr.Error)

	// PutFile streams src into a newly created remote file named name,
	// returning the number of bytes written.
	PutFile(name string, src io.Reader) (int64, liberr.Error)

	// Rename renames within the current directory.
	Rename(from, to string) liberr.Error

	// Rm deletes a file.
	Rm(name string) liberr.Error

	// Quit performs a best-effort graceful close. Errors are ignored by
	// callers.
	Quit()
}

// Side names which end of a rule (source or destination) an endpoint
// belongs to. Dial does not take a Side.
type Side int

const (
	SideSource Side = iota
	SideDestination
)

// Dial opens and authenticates a Client for the given endpoint,
// dispatching on ep.Proto. This is the only place in the repository that
// knows about jlaffaye/ftp or pkg/sftp.
func Dial(ctx context.Context, ep config.Endpoint, timeout time.Duration, insecureSkipVerify bool) (Client, liberr.Error) {
	switch ep.Proto {
	case config.ProtoFTP:
		return dialFTP(ctx, ep, timeout, false, insecureSkipVerify)
	case config.ProtoFTPS:
		return dialFTP(ctx, ep, timeout, true, insecureSkipVerify)
	case config.ProtoSFTP:
		return dialSFTP(ctx, ep, timeout)
	default:
		return nil, ErrorUnknownProto.Error(nil)
	}
}

func credentialFor(ep config.Endpoint) *credential.Secret {
	if ep.Password != "" {
		return credential.NewSecret(ep.Password)
	}
	return credential.NewSecret(ep.KeyFilePass)
}
