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
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	liberr "github.com/sabouaram/iftpfm/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sabouaram/iftpfm/config"
)

// sftpSession emulates Cwd by remembering the last validated directory
// and composing full paths for subsequent relative operations, since
// SFTP has no directory-scoped session state of its own.
type sftpSession struct {
	conn *ssh.Client
	cli  *sftp.Client
	cwd  string
}

func dialSFTP(ctx context.Context, ep config.Endpoint, timeout time.Duration) (Client, liberr.Error) {
	cfg := &ssh.ClientConfig{
		User:            ep.Login,
		Timeout:         timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	if ep.KeyFile != "" {
		key, err := os.ReadFile(ep.KeyFile)
		if err != nil {
			return nil, ErrorSFTPKeyParse.Error(err)
		}

		var signer ssh.Signer
		if ep.KeyFilePass != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(ep.KeyFilePass))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, ErrorSFTPKeyParse.Error(err)
		}

		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	} else {
		cred := credentialFor(ep)
		defer cred.Wipe()
		cfg.Auth = append(cfg.Auth, ssh.Password(cred.Expose()))
	}

	addr := fmt.Sprintf("%s:%d", ep.Host, ep.Port)

	conn, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, ErrorSFTPHandshake.Error(err)
	}

	cli, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, ErrorSFTPHandshake.Error(err)
	}

	return &sftpSession{conn: conn, cli: cli}, nil
}

func (s *sftpSession) resolve(name string) string {
	if s.cwd == "" || path.IsAbs(name) {
		return name
	}
	return path.Join(s.cwd, name)
}

func (s *sftpSession) Cwd(p string) liberr.Error {
	fi, err := s.cli.Stat(p)
	if err != nil {
		return ErrorCwd.Error(err)
	}
	if !fi.IsDir() {
		return ErrorCwd.Error(fmt.Errorf("%q is not a directory", p))
	}

	s.cwd = p
	return nil
}

// TransferType is a no-op: SFTP is always binary.
func (s *sftpSession) TransferType(TransferType) liberr.Error { return nil }

func (s *sftpSession) Nlst(p string) ([]string, liberr.Error) {
	dir := p
	if dir == "" {
		dir = s.cwd
	}
	if dir == "" {
		dir = "."
	}

	entries, err := s.cli.ReadDir(dir)
	if err != nil {
		return nil, ErrorCommand.Error(err, fmt.Errorf("command: readdir"))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}

func (s *sftpSession) Mdtm(name string) (time.Time, liberr.Error) {
	fi, err := s.cli.Lstat(s.resolve(name))
	if err != nil {
		return time.Time{}, ErrorCommand.Error(err, fmt.Errorf("command: stat"))
	}

	return fi.ModTime().UTC(), nil
}

func (s *sftpSession) Size(name string) (int64, liberr.Error) {
	fi, err := s.cli.Lstat(s.resolve(name))
	if err != nil {
		return 0, ErrorCommand.Error(err, fmt.Errorf("command: stat"))
	}

	return fi.Size(), nil
}

func (s *sftpSession) Retr(name string, sink func(r io.Reader) (any, error)) (any, int64, liberr.Error) {
	f, err := s.cli.Open(s.resolve(name))
	if err != nil {
		return nil, 0, ErrorCommand.Error(err, fmt.Errorf("command: open"))
	}
	defer func() { _ = f.Close() }()

	counted := &countingReader{r: f}

	out, serr := sink(counted)
	if serr != nil {
		return nil, counted.n, ErrorCommand.Error(serr, fmt.Errorf("command: read"))
	}

	return out, counted.n, nil
}

func (s *sftpSession) PutFile(name string, src io.Reader) (int64, liberr.Error) {
	f, err := s.cli.Create(s.resolve(name))
	if err != nil {
		return 0, ErrorCommand.Error(err, fmt.Errorf("command: create"))
	}
	defer func() { _ = f.Close() }()

	n, err := io.Copy(f, src)
	if err != nil {
		return n, ErrorCommand.Error(err, fmt.Errorf("command: write"))
	}

	return n, nil
}

func (s *sftpSession) Rename(from, to string) liberr.Error {
	if err := s.cli.Rename(s.resolve(from), s.resolve(to)); err != nil {
		return ErrorCommand.Error(err, fmt.Errorf("command: rename"))
	}
	return nil
}

func (s *sftpSession) Rm(name string) liberr.Error {
	if err := s.cli.Remove(s.resolve(name)); err != nil {
		return ErrorCommand.Error(err, fmt.Errorf("command: remove"))
	}
	return nil
}

func (s *sftpSession) Quit() {
	_ = s.cli.Close()
	_ = s.conn.Close()
}
