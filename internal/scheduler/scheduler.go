// Package scheduler drives bounded-concurrency compiler invocations over a
// resolved dependency graph. A single orchestrator goroutine owns all
// scheduler state; the only application-level concurrency is one goroutine
// per spawned child whose sole job is to block on its Wait() and post the
// result back, which is how this reproduces the try_wait polling loop that
// os/exec has no native equivalent for (grounded on
// VKCOM-nocc/internal/server/cxx-launcher.go's serverCxxThrottle, reshaped
// from nocc's one-blocking-channel-send-per-session form into a poll loop).
package scheduler

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/compiler"
	"github.com/ccbuild/ccbuild/internal/depgraph"
)

const pollInterval = 10 * time.Millisecond

var errCycle = errors.New("dependency cycle")

// QCommand is one pending or active build step: a spawnable command plus
// the inputs it still needs built (Requires) and the output it produces on
// success (Provides).
type QCommand struct {
	Cmd      compiler.Command
	Requires []depgraph.DepFile
	Provides depgraph.DepFile
}

type poolEntry struct {
	qc   *QCommand
	proc *exec.Cmd
	done chan error
}

// Scheduler resolves one build: it is not safe to reuse across unrelated
// targets, and not safe for concurrent use, matching its single-orchestrator
// design.
type Scheduler struct {
	workers  int
	compiler compiler.Compiler
	cache    *depgraph.DepCache
	logger   *common.Logger
	verbose  bool

	built        map[string]struct{}
	depQueue     []*depgraph.Dependency
	commandQueue []*QCommand
	pool         []*poolEntry

	stopping int32
}

// DefaultWorkerCount returns the worker budget used when none is configured:
// all but two of the available CPUs, clamped to at least one, leaving room
// for the orchestrator itself and one compiler driver process.
func DefaultWorkerCount() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// New builds a Scheduler that spawns commands via c, logging spawned
// commands through logger (may be nil). workers <= 0 selects
// DefaultWorkerCount. cache is used to fill_dependency sub-dependencies the
// compiler synthesizes on the fly (e.g. a Source lifted to an Object) before
// judging them up to date; it must be the same DepCache the project resolved
// its targets with, so module/include lookups are consistent.
func New(c compiler.Compiler, cache *depgraph.DepCache, logger *common.Logger, workers int, verbose bool) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkerCount()
	}
	return &Scheduler{
		workers:  workers,
		compiler: c,
		cache:    cache,
		logger:   logger,
		verbose:  verbose,
		built:    make(map[string]struct{}),
	}
}

// QueueTarget enqueues dep unless its output is already up to date with
// every one of its dependencies, in which case it is silently dropped: a
// clean run of a fully-built project queues nothing and spawns nothing.
func (s *Scheduler) QueueTarget(dep *depgraph.Dependency) error {
	upToDate, err := depgraph.IsUpToDate(dep.File.Path, dep)
	if err != nil {
		return err
	}
	if upToDate {
		return nil
	}
	s.depQueue = append(s.depQueue, dep)
	return nil
}

// Stop requests that Build wind down at the next opportunity: it stops
// selecting new commands and goes straight to draining the pool. It is not
// a general cancellation API (there is none, by design) — it exists only
// so a caller can translate a termination signal into the same
// wait-on-every-child-before-returning discipline Build already uses for
// every other exit path, instead of the process dying mid-spawn and
// orphaning children.
func (s *Scheduler) Stop() {
	atomic.StoreInt32(&s.stopping, 1)
}

func (s *Scheduler) stopRequested() bool {
	return atomic.LoadInt32(&s.stopping) != 0
}

// Build drains the dependency and command queues, spawning commands up to
// the worker budget, until every queued target has been built or an error
// occurs. It reaps every live child on every exit path, success or failure.
func (s *Scheduler) Build() (err error) {
	defer func() {
		if derr := s.drainPool(); derr != nil && err == nil {
			err = derr
		}
	}()

	for {
		if s.stopRequested() {
			return nil
		}

		qc, cycle, selErr := s.selectCommand()
		if selErr != nil {
			return selErr
		}
		if cycle {
			if herr := s.handleCycle(); herr != nil {
				return herr
			}
			continue
		}
		if qc == nil {
			return nil
		}
		if err := s.waitAndRun(qc); err != nil {
			return err
		}
	}
}

// selectCommand is the heart of the scheduler. It returns the next ready
// QCommand, or cycle=true if the queues are deadlocked on each other with
// nothing left to expand, or a nil command with no error when everything
// queued has already been built.
func (s *Scheduler) selectCommand() (*QCommand, bool, error) {
	for {
		if qc := s.popReadyFromQueue(); qc != nil {
			return qc, false, nil
		}

		if len(s.depQueue) == 0 {
			if len(s.commandQueue) > 0 {
				return nil, true, nil
			}
			return nil, false, nil
		}

		dep := s.depQueue[len(s.depQueue)-1]
		s.depQueue = s.depQueue[:len(s.depQueue)-1]

		if _, ok := s.built[dep.File.Path]; ok {
			continue
		}

		cmd, subDeps, err := s.compiler.Build(dep)
		if err != nil {
			return nil, false, err
		}

		var requires []depgraph.DepFile
		for _, sub := range subDeps {
			if _, ok := s.built[sub.File.Path]; ok {
				continue
			}
			if s.providedInPool(sub.File.Path) {
				continue
			}
			if s.cache != nil {
				if err := s.cache.FillDependency(sub); err != nil {
					return nil, false, err
				}
			}
			upToDate, err := depgraph.IsUpToDate(sub.File.Path, sub)
			if err != nil {
				return nil, false, err
			}
			if upToDate {
				s.built[sub.File.Path] = struct{}{}
				continue
			}
			s.depQueue = append(s.depQueue, sub)
			requires = append(requires, sub.File)
		}

		qc := &QCommand{Cmd: cmd, Requires: requires, Provides: dep.File}
		if len(requires) == 0 {
			return qc, false, nil
		}
		s.commandQueue = append(s.commandQueue, qc)
	}
}

// popReadyFromQueue walks command_queue in reverse, dropping satisfied
// requirements as it goes; the first entry left with no requirements is
// removed and returned. Reverse order means the most recently discovered
// command runs first, a depth-first bias that keeps the live set small.
func (s *Scheduler) popReadyFromQueue() *QCommand {
	for i := len(s.commandQueue) - 1; i >= 0; i-- {
		qc := s.commandQueue[i]
		qc.Requires = filterBuilt(qc.Requires, s.built)
		if len(qc.Requires) == 0 {
			s.commandQueue = append(s.commandQueue[:i], s.commandQueue[i+1:]...)
			return qc
		}
	}
	return nil
}

func filterBuilt(files []depgraph.DepFile, built map[string]struct{}) []depgraph.DepFile {
	out := files[:0]
	for _, f := range files {
		if _, ok := built[f.Path]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (s *Scheduler) providedInPool(path string) bool {
	for _, entry := range s.pool {
		if entry.qc.Provides.Path == path {
			return true
		}
	}
	return false
}

// handleCycle is select_command's DependencyCycle recovery: while any
// child is still running, one of them may still produce what the stuck
// commands are waiting on, so block for the next exit and retry.
func (s *Scheduler) handleCycle() error {
	if len(s.pool) == 0 {
		return common.ErrDependencyCycle
	}
	return s.waitForAnyChild()
}

func (s *Scheduler) waitForAnyChild() error {
	for {
		for i, entry := range s.pool {
			select {
			case err := <-entry.done:
				s.pool = append(s.pool[:i], s.pool[i+1:]...)
				if err != nil {
					return wrapProcessError(err)
				}
				s.built[entry.qc.Provides.Path] = struct{}{}
				return nil
			default:
			}
		}
		time.Sleep(pollInterval)
	}
}

// waitAndRun spawns c immediately if the pool has a free slot, otherwise
// polls every active child in order until one exits, replacing it in place.
func (s *Scheduler) waitAndRun(c *QCommand) error {
	if len(s.pool) < s.workers {
		return s.spawn(c)
	}

	for {
		for i, entry := range s.pool {
			select {
			case err := <-entry.done:
				s.pool = append(s.pool[:i], s.pool[i+1:]...)
				if err != nil {
					return wrapProcessError(err)
				}
				s.built[entry.qc.Provides.Path] = struct{}{}
				return s.spawn(c)
			default:
			}
		}
		time.Sleep(pollInterval)
	}
}

func (s *Scheduler) spawn(c *QCommand) error {
	if err := common.MkdirForFile(c.Provides.Path); err != nil {
		return err
	}

	cmd := exec.Command(c.Cmd.Path, c.Cmd.Args...)
	cmd.Dir = c.Cmd.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if s.verbose && s.logger != nil {
		s.logger.Info(1, c.Cmd.Path, c.Cmd.Args)
	}
	fmt.Println(c.Cmd.Path, joinArgs(c.Cmd.Args))

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	s.pool = append(s.pool, &poolEntry{qc: c, proc: cmd, done: done})
	return nil
}

// drainPool waits for every remaining child, LIFO, guaranteeing none is
// left orphaned regardless of why Build is returning. It keeps waiting on
// every child even after the first failure, so nothing is left running.
func (s *Scheduler) drainPool() error {
	var firstErr error
	for i := len(s.pool) - 1; i >= 0; i-- {
		entry := s.pool[i]
		if err := <-entry.done; err != nil {
			if firstErr == nil {
				firstErr = wrapProcessError(err)
			}
		} else {
			s.built[entry.qc.Provides.Path] = struct{}{}
		}
	}
	s.pool = nil
	return firstErr
}

func wrapProcessError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return &common.ProcessFailedError{}
		}
		return &common.ProcessFailedError{Code: &code}
	}
	return err
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
