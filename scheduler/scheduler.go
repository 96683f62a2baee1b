// Package scheduler drives aggregation cycles on a fixed interval and on
// demand, with at most one cycle in flight at any time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newsdeck/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var refreshTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsdeck_refresh_triggers_total",
	Help: "Refresh triggers by source and whether they started a cycle",
}, []string{"trigger", "result"})

type State int

const (
	Idle State = iota
	FetchInFlight
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchInFlight:
		return "fetch-in-flight"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Cycle performs one aggregation cycle, including delivering its result
type Cycle func(ctx context.Context)

// Timer is a pending timer that can be cancelled
type Timer interface {
	Stop() bool
}

// TimerFunc arms a timer that calls f once after d
type TimerFunc func(d time.Duration, f func()) Timer

func realTimer(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Scheduler)

// WithTimerFunc replaces time.AfterFunc, mainly for tests
func WithTimerFunc(f TimerFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = f
	}
}

// Scheduler is stopped until Start is called. Stop does not cancel a cycle
// that is already running; it only prevents new ones.
type Scheduler struct {
	ctx       context.Context
	cycle     Cycle
	afterFunc TimerFunc

	mu       sync.Mutex
	running  bool
	inFlight bool
	interval time.Duration
	timer    Timer
	// generation invalidates callbacks from timers that were replaced
	generation uint64

	wg sync.WaitGroup
}

// New creates a scheduler. ctx is passed to every cycle; once it is done no
// new cycles are started.
func New(ctx context.Context, cycle Cycle, opts ...Option) *Scheduler {
	s := &Scheduler{
		ctx:       ctx,
		cycle:     cycle,
		afterFunc: realTimer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a cycle immediately and then every interval, measured from the
// end of each cycle. Calling Start again cancels the pending timer first. If
// a cycle is already in flight no second one is started; the new interval
// applies once it completes. Start fails once the scheduler's context is done.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return models.NewValidationError("interval", "must be positive, got %s", interval)
	}

	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("scheduler context is done: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.running = true
	s.interval = interval

	log.WithFields(log.Fields{
		"interval": interval,
	}).Info("Starting refresh scheduler")

	if s.inFlight {
		refreshTriggers.WithLabelValues("start", "coalesced").Inc()
		return nil
	}

	s.beginCycleLocked("start")
	return nil
}

// TriggerManualRefresh starts a cycle now unless one is already in flight,
// in which case the call is a no-op. The recurring countdown restarts after
// the manual cycle. Returns whether a cycle was started.
func (s *Scheduler) TriggerManualRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.inFlight || s.ctx.Err() != nil {
		refreshTriggers.WithLabelValues("manual", "coalesced").Inc()
		log.WithFields(log.Fields{
			"state": s.stateLocked(),
		}).Debug("Ignoring manual refresh")
		return false
	}

	s.stopTimerLocked()
	s.beginCycleLocked("manual")
	return true
}

// Stop cancels the pending timer. An in-flight cycle still completes and
// delivers its result, but nothing is scheduled after it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.stopTimerLocked()
	s.running = false
	log.Info("Stopped refresh scheduler")
}

// Wait blocks until no cycle is in flight
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) stateLocked() State {
	switch {
	case s.inFlight:
		return FetchInFlight
	case s.running:
		return Idle
	default:
		return Stopped
	}
}

func (s *Scheduler) beginCycleLocked(trigger string) {
	refreshTriggers.WithLabelValues(trigger, "started").Inc()
	log.WithFields(log.Fields{
		"trigger": trigger,
	}).Info("Starting aggregation cycle")

	s.inFlight = true
	s.wg.Add(1)
	go s.runCycle()
}

func (s *Scheduler) runCycle() {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Aggregation cycle panicked: %v", r)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.inFlight = false
		if s.running && s.ctx.Err() == nil {
			s.armLocked()
		}
	}()

	s.cycle(s.ctx)
}

func (s *Scheduler) armLocked() {
	s.generation++
	generation := s.generation
	s.timer = s.afterFunc(s.interval, func() {
		s.onTimer(generation)
	})
}

func (s *Scheduler) stopTimerLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) onTimer(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || !s.running || s.inFlight || s.ctx.Err() != nil {
		return
	}

	s.timer = nil
	s.beginCycleLocked("timer")
}
