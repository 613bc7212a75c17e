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

// Command iftpfm is a multi-site FTP/FTPS/SFTP file mover: it reads a
// JSONL rule file, opens a source and destination session per rule,
// filters, stages, transfers, and atomically commits each eligible
// file, then exits. Scheduling repeated runs is left to the caller
// (cron, systemd timers, ...).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	liberr "github.com/sabouaram/iftpfm/errors"

	"github.com/sabouaram/iftpfm/config"
	"github.com/sabouaram/iftpfm/instance"
	"github.com/sabouaram/iftpfm/logging"
	"github.com/sabouaram/iftpfm/shutdown"
	"github.com/sabouaram/iftpfm/transfer"
	"github.com/sabouaram/iftpfm/workerpool"
)

const programName = "iftpfm"

type flags struct {
	deleteOnSuccess    bool
	randomize          bool
	logPath            string
	stdout             bool
	parallelism        int
	graceSeconds       int
	connectTimeout     int
	scratchDir         string
	debug              bool
	ramThreshold       int64
	insecureSkipVerify bool
}

func main() {
	// Every logged error should carry its full cause chain, not just the
	// top-level registered message.
	liberr.SetModeReturnError(liberr.ErrorReturnStringErrorFull)

	f := &flags{}

	root := &cobra.Command{
		Use:     programName + " [flags] config_file",
		Short:   "Move files between FTP/FTPS/SFTP sites under rule-based control",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], f)
		},
		SilenceUsage: true,
	}

	root.Flags().BoolVarP(&f.deleteOnSuccess, "delete", "d", false, "delete source file after a fully verified transfer")
	root.Flags().BoolVarP(&f.randomize, "randomize", "r", false, "shuffle the rule sequence before dispatching")
	root.Flags().StringVarP(&f.logPath, "log-file", "l", "", "write log lines to this file instead of stdout (mutually exclusive with -s)")
	root.Flags().BoolVarP(&f.stdout, "stdout", "s", false, "log to standard output (explicit; mutually exclusive with -l)")
	root.Flags().IntVarP(&f.parallelism, "parallel", "p", 1, "number of rules to process concurrently")
	root.Flags().IntVarP(&f.graceSeconds, "grace", "g", 30, "seconds to wait for a prior instance to exit before killing it")
	root.Flags().IntVarP(&f.connectTimeout, "timeout", "t", 30, "per-connection timeout in seconds")
	root.Flags().StringVarP(&f.scratchDir, "scratch-dir", "T", os.TempDir(), "directory used to stage files larger than the RAM threshold")
	root.Flags().BoolVar(&f.debug, "debug", false, "enable debug-level logging")
	root.Flags().Int64Var(&f.ramThreshold, "ram-threshold", 10*1024*1024, "files at or under this size (bytes) are staged in memory")
	root.Flags().BoolVar(&f.insecureSkipVerify, "insecure-skip-verify", false, "skip TLS certificate verification for FTPS sessions")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, configPath string, f *flags) error {
	if f.logPath != "" && f.stdout {
		return fmt.Errorf("-l and -s are mutually exclusive")
	}

	var out logging.Output = logging.ToStdout{}
	if f.logPath != "" {
		out = logging.ToFile{Path: f.logPath}
	}
	// -s asks for the same destination as the default; naming it
	// explicitly is still accepted rather than rejected.

	log := logging.New(out)
	log.SetDebug(f.debug)

	rules, lerr := config.LoadFile(configPath)
	if lerr != nil {
		log.Error("unable to load configuration from %s: %s", configPath, lerr.Error())
		return fmt.Errorf("configuration error: %w", lerr)
	}
	log.Info("loaded %d rule(s) from %s", len(rules), configPath)

	coord := &shutdown.Coordinator{}

	lock, ierr := instance.Acquire(programName, f.graceSeconds, log.Info)
	if ierr != nil {
		log.Error("unable to acquire single-instance lock: %s", ierr.Error())
		return fmt.Errorf("instance lock error: %w", ierr)
	}
	defer lock.Release()

	go lock.Listen(coord)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := shutdown.Watcher{Logger: func(s string) { log.Info(s) }}
	go watcher.Watch(ctx, coord)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		kind := shutdown.KindInterrupt
		if <-sigs == syscall.SIGTERM {
			kind = shutdown.KindTerminate
		}
		coord.RequestWithKind(kind)
	}()

	scratchDir, aerr := filepath.Abs(f.scratchDir)
	if aerr != nil {
		scratchDir = f.scratchDir
	}

	opts := transfer.Options{
		ConnectTimeout:     time.Duration(f.connectTimeout) * time.Second,
		ScratchDir:         scratchDir,
		RAMThreshold:       f.ramThreshold,
		InsecureSkipVerify: f.insecureSkipVerify,
		DeleteOnSuccess:    f.deleteOnSuccess,
	}

	engine := func(ctx context.Context, id int, rule config.Rule) workerpool.Tally {
		opts := opts
		opts.WorkerID = id
		res := transfer.Run(ctx, coord, rule, opts, log)
		return workerpool.Tally{Transferred: res.Transferred, Listed: res.Listed, Err: res.Err}
	}

	tally, runErr := workerpool.Run(ctx, coord, rules, f.parallelism, f.randomize, engine)
	log.Info("pass complete: %d file(s) transferred out of %d listed", tally.Transferred, tally.Listed)
	if runErr != nil {
		log.Warn("one or more rules failed this pass: %s", runErr)
	}

	log.Info("%s exiting", programName)
	return nil
}
