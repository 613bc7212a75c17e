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
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/sabouaram/iftpfm/config"
	"github.com/sabouaram/iftpfm/logging"
	"github.com/sabouaram/iftpfm/protocol"
	"github.com/sabouaram/iftpfm/shutdown"
	"github.com/sabouaram/iftpfm/stage"
)

// Run executes the outer sequence for one rule: open both sessions, list
// the source directory, and process each eligible file. Session-setup
// failures abort the rule and return the tally so far; per-file failures
// only skip that file.
func Run(ctx context.Context, c *shutdown.Coordinator, rule config.Rule, opts Options, log *logging.Logger) Result {
	log = log.ForWorker(opts.WorkerID)

	if c.IsRequested() {
		log.Info("shutdown requested, skipping rule for %s", rule.Source.Host)
		return Result{}
	}

	src, err := protocol.Dial(ctx, rule.Source, opts.ConnectTimeout, opts.InsecureSkipVerify)
	if err != nil {
		log.Error("unable to open source session %s@%s: %s", rule.Source.Login, rule.Source.Host, err.Error())
		return Result{Err: ErrorSessionSetup.Error(err)}
	}
	defer src.Quit()

	dst, err := protocol.Dial(ctx, rule.Destination, opts.ConnectTimeout, opts.InsecureSkipVerify)
	if err != nil {
		log.Error("unable to open destination session %s@%s: %s", rule.Destination.Login, rule.Destination.Host, err.Error())
		return Result{Err: ErrorSessionSetup.Error(err)}
	}
	defer dst.Quit()

	if err := src.TransferType(protocol.TypeBinary); err != nil {
		log.Error("unable to set binary transfer type on source: %s", err.Error())
		return Result{Err: ErrorSessionSetup.Error(err)}
	}
	if err := dst.TransferType(protocol.TypeBinary); err != nil {
		log.Error("unable to set binary transfer type on destination: %s", err.Error())
		return Result{Err: ErrorSessionSetup.Error(err)}
	}

	if err := src.Cwd(rule.Source.Path); err != nil {
		log.Error("unable to cwd into source path %s: %s", rule.Source.Path, err.Error())
		return Result{Err: ErrorSessionSetup.Error(err)}
	}
	if err := dst.Cwd(rule.Destination.Path); err != nil {
		log.Error("unable to cwd into destination path %s: %s", rule.Destination.Path, err.Error())
		return Result{Err: ErrorSessionSetup.Error(err)}
	}

	names, err := src.Nlst("")
	if err != nil {
		log.Error("unable to list source directory: %s", err.Error())
		return Result{Err: ErrorFileMetadata.Error(err)}
	}

	re, reErr := rule.Regexp()
	if reErr != nil {
		log.Error("invalid filename pattern %q: %s", rule.FilenamePattern, reErr)
		return Result{Err: ErrorSessionSetup.Error(reErr)}
	}

	res := Result{Listed: len(names)}

	for _, name := range names {
		if c.IsRequested() {
			log.Info("terminated due to shutdown request, transferred %d file(s)", res.Transferred)
			break
		}

		if processFile(src, dst, name, re, rule, opts, log) {
			res.Transferred++
		}
	}

	log.Info("successfully transferred %d files out of %d", res.Transferred, res.Listed)

	return res
}

func processFile(src, dst protocol.Client, name string, re *regexp.Regexp, rule config.Rule, opts Options, log *logging.Logger) bool {
	if !re.MatchString(name) {
		log.Debug("skipping file %s as it did not match regex %s", name, rule.FilenamePattern)
		return false
	}

	mtime, err := src.Mdtm(name)
	if err != nil {
		log.Info("error getting modified time for file %s: %s, skipping", name, err.Error())
		return false
	}

	now := time.Now().UTC()
	if mtime.Year() < 1970 {
		log.Info("file %s has a pre-epoch modification time (%s), skipping", name, mtime)
		return false
	}
	if mtime.After(now) {
		log.Info("file %s has a modification time in the future (%s vs now), skipping", name, mtime)
		return false
	}

	age := now.Sub(mtime)
	if int(age.Seconds()) < rule.MinAgeSeconds {
		log.Info("skipping file %s, it is %d seconds old, less than specified age %d seconds", name, int(age.Seconds()), rule.MinAgeSeconds)
		return false
	}

	size, err := src.Size(name)
	if err != nil {
		log.Info("error getting size for file %s: %s, skipping", name, err.Error())
		return false
	}

	kind := stage.Choose(size, opts.RAMThreshold)
	if kind == stage.KindMemory {
		log.Info("staging %s (%d bytes) in memory", name, size)
	} else {
		log.Info("staging %s (%d bytes) on disk", name, size)
	}

	buf, err2 := stage.New(kind, opts.ScratchDir)
	if err2 != nil {
		log.Error("unable to allocate staging buffer for %s: %s", name, err2)
		return false
	}
	defer func() { _ = buf.Close() }()

	_, staged, rerr := src.Retr(name, func(r io.Reader) (any, error) {
		_, err := io.Copy(buf, r)
		return nil, err
	})
	if rerr != nil {
		log.Error("error retrieving %s: %s, skipping", name, rerr.Error())
		return false
	}
	if staged != size {
		log.Info("WARNING: size mismatch retrieving %s: expected %d, got %d", name, size, staged)
	}

	tmpName := fmt.Sprintf(".%s.%d.tmp", name, os.Getpid())

	reader, err3 := buf.Reader()
	if err3 != nil {
		log.Error("unable to read back staged file %s: %s", name, err3)
		return false
	}

	written, werr := dst.PutFile(tmpName, reader)
	_ = reader.Close()
	if werr != nil {
		log.Error("error uploading %s: %s, removing temp", tmpName, werr.Error())
		_ = dst.Rm(tmpName)
		return false
	}

	if written != buf.Size() {
		log.Info("WARNING: size mismatch! expected %d bytes, put_file reported %d bytes written", buf.Size(), written)
	}

	actual, verr := dst.Size(tmpName)
	if verr != nil || actual != buf.Size() {
		log.Error("upload verification failed for %s: expected %d bytes, skipping", tmpName, buf.Size())
		_ = dst.Rm(tmpName)
		return false
	}

	if !commit(dst, tmpName, name, buf.Size(), log) {
		return false
	}

	log.Info("successful transfer of file %s", name)

	if opts.DeleteOnSuccess {
		if derr := src.Rm(name); derr != nil {
			log.Error("error deleting source file %s: %s", name, derr.Error())
		} else {
			log.Info("deleted source file %s", name)
		}
	}

	return true
}
