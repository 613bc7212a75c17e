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

// Package workerpool drives a bounded, shutdown-aware fan-out over a
// sequence of rules, built on golang.org/x/sync/semaphore. Per-rule
// setup failures are collected concurrently in an errors/pool.Pool
// rather than a plain mutex-guarded slice, since that package already
// solves exactly this problem: concurrent, indexed error collection.
package workerpool

import (
	"context"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/iftpfm/config"
	"github.com/sabouaram/iftpfm/errors/pool"
	"github.com/sabouaram/iftpfm/shutdown"
)

// Tally is the summed outcome of a worker-pool run.
type Tally struct {
	Transferred int
	Listed      int
	Err         error
}

// Engine is invoked once per rule, on a worker identified by id.
type Engine func(ctx context.Context, id int, rule config.Rule) Tally

// Run implements the driver algorithm: optional shuffle, bounded
// parallelism, per-rule shutdown check before dispatch, summed tallies.
// The returned error, if non-nil, combines every rule's setup failure
// (per-file failures are not included; those are logged and skipped by
// the engine itself).
func Run(ctx context.Context, c *shutdown.Coordinator, rules []config.Rule, parallelism int, randomize bool, engine Engine) (Tally, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	ordered := make([]config.Rule, len(rules))
	copy(ordered, rules)

	if randomize {
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	sem := semaphore.NewWeighted(int64(parallelism))
	errs := pool.New()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total Tally
	)

	for i, rule := range ordered {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(id int, rule config.Rule) {
			id = id % parallelism
			defer wg.Done()
			defer sem.Release(1)

			var t Tally
			if !c.IsRequested() {
				t = engine(ctx, id, rule)
			}
			if t.Err != nil {
				errs.Add(t.Err)
			}

			mu.Lock()
			total.Transferred += t.Transferred
			total.Listed += t.Listed
			mu.Unlock()
		}(i, rule)
	}

	wg.Wait()

	return total, errs.Error()
}
