// Package scheduler runs sync passes in the background: on a timer, on
// reconnect, and on demand after local writes.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erauner12/tasksync/internal/syncengine"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the auto-sync period when none is given.
const DefaultInterval = 60 * time.Second

// Syncer runs one sync pass.
type Syncer interface {
	SyncAll(ctx context.Context) (syncengine.Result, error)
}

// Notifier delivers connectivity transitions.
type Notifier interface {
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ErrClosed is the outcome of a Trigger issued after Close.
var ErrClosed = errors.New("scheduler closed")

// Outcome is the result of a triggered run.
type Outcome struct {
	Result syncengine.Result
	Err    error
}

// Scheduler owns the auto-sync timer and the reconnect subscription.
type Scheduler struct {
	syncer  Syncer
	monitor Notifier

	mu          sync.Mutex
	stopCh      chan struct{}
	interval    time.Duration
	unsubscribe func()
	loop        sync.WaitGroup

	// runMu guards closed and runs.Add; it is separate from mu because the
	// tick loop triggers while StopAutoSync holds mu and waits for it.
	runMu  sync.Mutex
	closed bool
	runs   sync.WaitGroup
}

// New creates a Scheduler. monitor may be nil when there is no connectivity
// source.
func New(syncer Syncer, monitor Notifier) *Scheduler {
	return &Scheduler{syncer: syncer, monitor: monitor}
}

// StartAutoSync runs a pass every interval until StopAutoSync, replacing any
// running timer, and triggers a pass whenever connectivity comes back.
func (s *Scheduler) StartAutoSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if s.monitor != nil {
		s.unsubscribe = s.monitor.Subscribe(func(online bool) {
			if online {
				log.Info().Msg("back online, triggering sync")
				s.Trigger(ctx)
			}
		})
	}

	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.interval = interval
	s.loop.Add(1)
	go s.tickLoop(ctx, interval, stopCh)

	log.Info().Dur("interval", interval).Msg("auto sync started")
}

// StopAutoSync stops the timer and the reconnect subscription.
func (s *Scheduler) StopAutoSync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopLocked() {
		log.Info().Msg("auto sync stopped")
	}
}

// Interval returns the active auto-sync period, or 0 when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) stopLocked() bool {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.stopCh == nil {
		return false
	}
	close(s.stopCh)
	s.stopCh = nil
	s.interval = 0
	s.loop.Wait()
	return true
}

func (s *Scheduler) tickLoop(ctx context.Context, interval time.Duration, stopCh <-chan struct{}) {
	defer s.loop.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

// Trigger starts a pass in the background. The returned channel receives the
// outcome once and is then closed; callers may ignore it. Failures are logged
// here and never surface to the caller of Trigger. After Close no pass is
// started and the outcome carries ErrClosed.
func (s *Scheduler) Trigger(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)

	s.runMu.Lock()
	if s.closed {
		s.runMu.Unlock()
		out <- Outcome{Err: ErrClosed}
		close(out)
		return out
	}
	s.runs.Add(1)
	s.runMu.Unlock()

	go func() {
		defer s.runs.Done()
		defer close(out)

		res, err := s.syncer.SyncAll(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("background sync failed")
		}
		out <- Outcome{Result: res, Err: err}
	}()

	return out
}

// Close stops auto sync, refuses further triggers and waits for triggered
// passes to finish.
func (s *Scheduler) Close() {
	s.runMu.Lock()
	s.closed = true
	s.runMu.Unlock()

	s.StopAutoSync()
	s.runs.Wait()
}
