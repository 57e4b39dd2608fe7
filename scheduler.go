// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "github.com/sourcegraph/conc/pool"

// Scheduler is the cooperative multi-task scheduler named in a
// configurable pool of worker goroutines that every [Runner]'s iteration
// occupies exactly one of while running. Backed by
// github.com/sourcegraph/conc's panic-safe goroutine pool.
type Scheduler struct {
	pool *pool.Pool
}

// NewScheduler returns a [*Scheduler] bounded to workers concurrently
// executing tasks. workers <= 0 means unbounded, matching
// [pool.Pool]'s default when WithMaxGoroutines is not called.
func NewScheduler(workers int) *Scheduler {
	p := pool.New()
	if workers > 0 {
		p = p.WithMaxGoroutines(workers)
	}
	return &Scheduler{pool: p}
}

// Go schedules fn to run on the pool, blocking only until a worker slot is
// available, not until fn completes.
func (s *Scheduler) Go(fn func()) {
	s.pool.Go(fn)
}

// Submit schedules fn to run on the pool and blocks until it completes,
// returning its error. Used by [RunnerManager] to bound how many runner
// iterations may execute concurrently while still reporting each one's
// result synchronously to its owning [*errgroup.Group] member.
func (s *Scheduler) Submit(fn func() error) error {
	result := make(chan error, 1)
	s.pool.Go(func() {
		result <- fn()
	})
	return <-result
}

// Wait blocks until every task submitted to the pool has returned,
// re-panicking if any of them panicked.
func (s *Scheduler) Wait() {
	s.pool.Wait()
}
