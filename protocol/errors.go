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

package protocol

import (
	"fmt"

	liberr "github.com/sabouaram/iftpfm/errors"
)

const (
	ErrorDial liberr.CodeError = iota + liberr.MinPkgProtocol
	ErrorLogin
	ErrorCwd
	ErrorCommand
	ErrorUnknownProto
)

const (
	ErrorFTPHandshake liberr.CodeError = iota + liberr.MinPkgFTP
)

const (
	ErrorSFTPHandshake liberr.CodeError = iota + liberr.MinPkgSFTP
	ErrorSFTPKeyParse
)

func init() {
	if liberr.ExistInMapMessage(ErrorDial) {
		panic(fmt.Errorf("error code collision in package protocol"))
	}
	liberr.RegisterIdFctMessage(ErrorDial, getMessage)
	liberr.RegisterIdFctMessage(ErrorFTPHandshake, getMessage)
	liberr.RegisterIdFctMessage(ErrorSFTPHandshake, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorDial:
		return "protocol: unable to connect"
	case ErrorLogin:
		return "protocol: authentication failed"
	case ErrorCwd:
		return "protocol: unable to change directory"
	case ErrorCommand:
		return "protocol: command failed"
	case ErrorUnknownProto:
		return "protocol: unknown protocol tag"
	case ErrorFTPHandshake:
		return "protocol: ftp/ftps handshake failed"
	case ErrorSFTPHandshake:
		return "protocol: sftp/ssh handshake failed"
	case ErrorSFTPKeyParse:
		return "protocol: unable to parse private key"
	}

	return liberr.NullMessage
}
