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

// Package instance enforces that only one transfer-engine process per
// user session runs at a time, via an exclusive advisory lock on a PID
// file plus a control socket that lets a new process politely supersede
// an old one. Grounded on original_source/src/instance.rs.
package instance

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	liberr "github.com/sabouaram/iftpfm/errors"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/iftpfm/shutdown"
)

// shutdownMagic is the single 8-byte literal the control socket accepts.
// No length prefix, no framing; a short write is ignored (spec Open
// Question, answered literally).
const shutdownMagic = "SHUTDOWN"

// Lock holds the process-wide single-instance state: the open PID-file
// handle (which is what actually holds the OS lock) and the bound
// control-socket listener. Both live for the process lifetime and are
// guarded by a mutex so no deep call site reaches in directly.
type Lock struct {
	mu       sync.Mutex
	pidFile  *os.File
	listener *net.UnixListener
	pidPath  string
	sockPath string
}

// Acquire implements the five-step protocol of the single-instance guard:
// try the lock, supersede an old holder if present and it won't yield
// within graceSeconds, bind the control socket, and return the Lock.
func Acquire(program string, graceSeconds int, log func(format string, args ...any)) (*Lock, liberr.Error) {
	pidPath, sockPath := lockPaths(program)

	l := &Lock{pidPath: pidPath, sockPath: sockPath}

	f, err := os.OpenFile(pidPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, ErrorLockOpen.Error(err)
	}

	if flockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); flockErr != nil {
		if supersedeErr := supersede(sockPath, graceSeconds, log); supersedeErr != nil {
			_ = f.Close()
			return nil, supersedeErr
		}

		if flockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); flockErr != nil {
			_ = f.Close()
			return nil, ErrorLockBusy.Error(flockErr)
		}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, ErrorLockOpen.Error(err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		_ = f.Close()
		return nil, ErrorLockOpen.Error(err)
	}

	_ = os.Remove(sockPath)

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: sockPath, Net: "unix"})
	if err != nil {
		_ = f.Close()
		return nil, ErrorSocketBind.Error(err)
	}

	l.pidFile = f
	l.listener = ln

	return l, nil
}

// supersede attempts to politely, then forcibly, terminate the process
// currently holding the lock, per original_source's
// signal_process_to_terminate.
func supersede(sockPath string, graceSeconds int, log func(format string, args ...any)) liberr.Error {
	conn, dialErr := net.DialTimeout("unix", sockPath, time.Second)
	if dialErr != nil {
		// Socket is stale; unlink it so the caller's retry can proceed.
		_ = os.Remove(sockPath)
		return nil
	}

	_, _ = conn.Write([]byte(shutdownMagic))
	_ = conn.Close()

	pidPath := sockPath[:len(sockPath)-len(".sock")] + ".pid"
	raw, err := os.ReadFile(pidPath)
	if err != nil {
		return ErrorSupersedeFailed.Error(err)
	}

	pid, err := strconv.Atoi(string(raw))
	if err != nil {
		return ErrorSupersedeFailed.Error(err)
	}

	if pid == os.Getpid() {
		return nil
	}

	_ = syscall.Kill(pid, syscall.SIGTERM)

	for i := 0; i < graceSeconds*2; i++ {
		if err := syscall.Kill(pid, 0); err != nil {
			return nil
		}
		if log != nil && i%2 == 0 {
			log("waiting for previous instance (pid %d) to exit", pid)
		}
		time.Sleep(500 * time.Millisecond)
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		return ErrorSupersedeFailed.Error(err, fmt.Errorf("pid %d did not exit and could not be killed", pid))
	}

	return nil
}

// Listen accepts connections on the control socket and, on receiving the
// exact shutdownMagic bytes, requests shutdown and stops listening.
func (l *Lock) Listen(c *shutdown.Coordinator) {
	buf := make([]byte, len(shutdownMagic))

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			return
		}

		n, _ := conn.Read(buf)
		_ = conn.Close()

		if n == len(shutdownMagic) && string(buf) == shutdownMagic {
			c.Request()
			return
		}
	}
}

// Release drops the lock and unlinks both the socket and the PID file.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != nil {
		_ = l.listener.Close()
	}
	_ = os.Remove(l.sockPath)

	if l.pidFile != nil {
		_ = l.pidFile.Close()
	}
	_ = os.Remove(l.pidPath)
}
