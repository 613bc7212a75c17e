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
	"time"

	libftp "github.com/jlaffaye/ftp"
	liberr "github.com/sabouaram/iftpfm/errors"

	"github.com/sabouaram/iftpfm/atomic"
	"github.com/sabouaram/iftpfm/config"
)

// ftpSession wraps jlaffaye/ftp behind the Client interface. The live
// connection is held in an atomic value so a dropped connection is
// transparently re-established on the next call.
type ftpSession struct {
	cli atomic.Value[*libftp.ServerConn]

	ep      config.Endpoint
	timeout time.Duration
	tls     bool
	insec   bool
}

func dialFTP(ctx context.Context, ep config.Endpoint, timeout time.Duration, useTLS bool, insecureSkipVerify bool) (Client, liberr.Error) {
	s := &ftpSession{
		cli:     atomic.NewValue[*libftp.ServerConn](),
		ep:      ep,
		timeout: timeout,
		tls:     useTLS,
		insec:   insecureSkipVerify,
	}

	if err := s.reconnect(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *ftpSession) conn() *libftp.ServerConn {
	return s.cli.Load()
}

func (s *ftpSession) reconnect(ctx context.Context) liberr.Error {
	opts := []libftp.DialOption{
		libftp.DialWithContext(ctx),
	}

	if s.timeout > 0 {
		opts = append(opts, libftp.DialWithTimeout(s.timeout))
	}

	if s.tls {
		opts = append(opts, libftp.DialWithExplicitTLS(newTLSConfig(s.ep.Host, s.insec)))
	}

	addr := fmt.Sprintf("%s:%d", s.ep.Host, s.ep.Port)

	cli, err := libftp.Dial(addr, opts...)
	if err != nil {
		return ErrorDial.Error(err)
	}

	cred := credentialFor(s.ep)
	defer cred.Wipe()

	if err := cli.Login(s.ep.Login, cred.Expose()); err != nil {
		return ErrorLogin.Error(err)
	}

	s.cli.Store(cli)
	return nil
}

func (s *ftpSession) ensure(ctx context.Context) (*libftp.ServerConn, liberr.Error) {
	c := s.conn()
	if c == nil {
		if err := s.reconnect(ctx); err != nil {
			return nil, err
		}
		c = s.conn()
	} else if c.NoOp() != nil {
		if err := s.reconnect(ctx); err != nil {
			return nil, err
		}
		c = s.conn()
	}

	return c, nil
}

func (s *ftpSession) Cwd(path string) liberr.Error {
	c, err := s.ensure(context.Background())
	if err != nil {
		return err
	}

	if e := c.ChangeDir(path); e != nil {
		return ErrorCwd.Error(e)
	}

	return nil
}

func (s *ftpSession) TransferType(t TransferType) liberr.Error {
	c, err := s.ensure(context.Background())
	if err != nil {
		return err
	}

	ft := libftp.TransferTypeBinary
	if t == TypeASCII {
		ft = libftp.TransferTypeASCII
	}

	if e := c.Type(ft); e != nil {
		return ErrorCommand.Error(e, fmt.Errorf("command: TYPE"))
	}

	return nil
}

func (s *ftpSession) Nlst(path string) ([]string, liberr.Error) {
	c, err := s.ensure(context.Background())
	if err != nil {
		return nil, err
	}

	names, e := c.NameList(path)
	if e != nil {
		return nil, ErrorCommand.Error(e, fmt.Errorf("command: NLST"))
	}

	return names, nil
}

func (s *ftpSession) Mdtm(name string) (time.Time, liberr.Error) {
	c, err := s.ensure(context.Background())
	if err != nil {
		return time.Time{}, err
	}

	t, e := c.GetTime(name)
	if e != nil {
		return time.Time{}, ErrorCommand.Error(e, fmt.Errorf("command: MDTM"))
	}

	return t.UTC(), nil
}

func (s *ftpSession) Size(name string) (int64, liberr.Error) {
	c, err := s.ensure(context.Background())
	if err != nil {
		return 0, err
	}

	n, e := c.FileSize(name)
	if e != nil {
		return 0, ErrorCommand.Error(e, fmt.Errorf("command: SIZE"))
	}

	return n, nil
}

func (s *ftpSession) Retr(name string, sink func(r io.Reader) (any, error)) (any, int64, liberr.Error) {
	c, err := s.ensure(context.Background())
	if err != nil {
		return nil, 0, err
	}

	resp, e := c.Retr(name)
	if e != nil {
		return nil, 0, ErrorCommand.Error(e, fmt.Errorf("command: RETR"))
	}
	defer func() { _ = resp.Close() }()

	counted := &countingReader{r: resp}

	out, serr := sink(counted)
	if serr != nil {
		return nil, counted.n, ErrorCommand.Error(serr, fmt.Errorf("command: RETR sink"))
	}

	return out, counted.n, nil
}

func (s *ftpSession) PutFile(name string, src io.Reader) (int64, liberr.Error) {
	c, err := s.ensure(context.Background())
	if err != nil {
		return 0, err
	}

	counted := &countingReader{r: src}

	if e := c.Stor(name, counted); e != nil {
		return counted.n, ErrorCommand.Error(e, fmt.Errorf("command: STOR"))
	}

	return counted.n, nil
}

func (s *ftpSession) Rename(from, to string) liberr.Error {
	c, err := s.ensure(context.Background())
	if err != nil {
		return err
	}

	if e := c.Rename(from, to); e != nil {
		return ErrorCommand.Error(e, fmt.Errorf("command: RNFR/RNTO"))
	}

	return nil
}

func (s *ftpSession) Rm(name string) liberr.Error {
	c, err := s.ensure(context.Background())
	if err != nil {
		return err
	}

	if e := c.Delete(name); e != nil {
		return ErrorCommand.Error(e, fmt.Errorf("command: DELE"))
	}

	return nil
}

func (s *ftpSession) Quit() {
	if c := s.conn(); c != nil {
		_ = c.Quit()
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
