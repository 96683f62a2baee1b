package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newsdeck/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) all() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer{}, c.timers...)
}

func (c *fakeClock) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range c.all() {
		if !t.stopped.Load() {
			out = append(out, t)
		}
	}
	return out
}

// countingCycle records calls and, when gated, blocks each cycle until release
type countingCycle struct {
	calls     atomic.Int32
	delivered atomic.Int32
	gate      chan struct{}
	entered   chan struct{}
}

func newCountingCycle(gated bool) *countingCycle {
	c := &countingCycle{entered: make(chan struct{}, 16)}
	if gated {
		c.gate = make(chan struct{})
	}
	return c
}

func (c *countingCycle) run(ctx context.Context) {
	c.calls.Add(1)
	c.entered <- struct{}{}
	if c.gate != nil {
		<-c.gate
	}
	c.delivered.Add(1)
}

func (c *countingCycle) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-c.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not start")
	}
}

func TestStartRunsImmediatelyThenArmsInterval(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	assert.Equal(t, scheduler.Stopped, s.State())

	require.NoError(t, s.Start(10*time.Minute))
	s.Wait()

	assert.Equal(t, int32(1), cycle.calls.Load())
	assert.Equal(t, scheduler.Idle, s.State())

	pending := clock.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 10*time.Minute, pending[0].d)
}

func TestTimerFireRunsCycleAndRearms(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	s.Wait()

	for i := 0; i < 3; i++ {
		pending := clock.pending()
		require.Len(t, pending, 1)
		pending[0].stopped.Store(true)
		pending[0].f()
		s.Wait()
	}

	assert.Equal(t, int32(4), cycle.calls.Load())
	assert.Len(t, clock.pending(), 1)
}

func TestManualTriggerDuringFetchIsCoalesced(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(true)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	cycle.waitEntered(t)
	assert.Equal(t, scheduler.FetchInFlight, s.State())

	assert.False(t, s.TriggerManualRefresh())
	assert.False(t, s.TriggerManualRefresh())

	close(cycle.gate)
	s.Wait()

	assert.Equal(t, int32(1), cycle.calls.Load())
	assert.Equal(t, int32(1), cycle.delivered.Load())
	assert.Equal(t, scheduler.Idle, s.State())
}

func TestManualTriggerRestartsCountdown(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	s.Wait()
	first := clock.pending()
	require.Len(t, first, 1)

	assert.True(t, s.TriggerManualRefresh())
	s.Wait()

	assert.True(t, first[0].stopped.Load())
	assert.Equal(t, int32(2), cycle.calls.Load())
	pending := clock.pending()
	require.Len(t, pending, 1)
	assert.NotSame(t, first[0], pending[0])

	// the replaced timer firing late must not start a cycle
	first[0].f()
	s.Wait()
	assert.Equal(t, int32(2), cycle.calls.Load())
}

func TestManualTriggerWhileStoppedIsIgnored(t *testing.T) {
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run)

	assert.False(t, s.TriggerManualRefresh())
	s.Wait()
	assert.Equal(t, int32(0), cycle.calls.Load())
}

func TestRestartWithNewInterval(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(10*time.Minute))
	s.Wait()
	old := clock.pending()
	require.Len(t, old, 1)

	require.NoError(t, s.Start(5*time.Minute))
	s.Wait()

	assert.True(t, old[0].stopped.Load())
	pending := clock.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 5*time.Minute, pending[0].d)
	assert.Equal(t, 5*time.Minute, s.Interval())
	assert.Equal(t, int32(2), cycle.calls.Load())
}

func TestRestartDuringFetchAppliesAfterCompletion(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(true)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(10*time.Minute))
	cycle.waitEntered(t)
	require.NoError(t, s.Start(5*time.Minute))

	close(cycle.gate)
	s.Wait()

	assert.Equal(t, int32(1), cycle.calls.Load())
	pending := clock.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 5*time.Minute, pending[0].d)
}

func TestStopLetsInFlightCycleDeliver(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(true)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	cycle.waitEntered(t)

	s.Stop()
	assert.Equal(t, scheduler.FetchInFlight, s.State())

	close(cycle.gate)
	s.Wait()

	assert.Equal(t, int32(1), cycle.delivered.Load())
	assert.Equal(t, scheduler.Stopped, s.State())
	assert.Empty(t, clock.pending())
	assert.False(t, s.TriggerManualRefresh())
}

func TestStopCancelsPendingTimer(t *testing.T) {
	clock := &fakeClock{}
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	s.Wait()
	timers := clock.pending()
	require.Len(t, timers, 1)

	s.Stop()
	assert.True(t, timers[0].stopped.Load())

	timers[0].f()
	s.Wait()
	assert.Equal(t, int32(1), cycle.calls.Load())
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run)

	for _, interval := range []time.Duration{0, -time.Second} {
		assert.Error(t, s.Start(interval))
	}
	assert.Equal(t, scheduler.Stopped, s.State())
	assert.Equal(t, int32(0), cycle.calls.Load())
}

func TestCancelledContextStopsRescheduling(t *testing.T) {
	clock := &fakeClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cycle := newCountingCycle(false)
	s := scheduler.New(ctx, cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	s.Wait()
	timers := clock.pending()
	require.Len(t, timers, 1)

	cancel()
	timers[0].f()
	s.Wait()

	assert.Equal(t, int32(1), cycle.calls.Load())
	assert.False(t, s.TriggerManualRefresh())
}

func TestStartAfterContextCancelled(t *testing.T) {
	clock := &fakeClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cycle := newCountingCycle(false)
	s := scheduler.New(ctx, cycle.run, scheduler.WithTimerFunc(clock.AfterFunc))

	cancel()
	err := s.Start(time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	s.Wait()
	assert.Equal(t, int32(0), cycle.calls.Load())
	assert.Equal(t, scheduler.Stopped, s.State())
	assert.Empty(t, clock.all())
}

func TestPanickingCycleDoesNotWedgeScheduler(t *testing.T) {
	clock := &fakeClock{}
	var calls atomic.Int32
	s := scheduler.New(context.Background(), func(ctx context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, scheduler.WithTimerFunc(clock.AfterFunc))

	require.NoError(t, s.Start(time.Minute))
	s.Wait()

	assert.Equal(t, scheduler.Idle, s.State())
	require.Len(t, clock.pending(), 1)

	assert.True(t, s.TriggerManualRefresh())
	s.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRealTimerRecurs(t *testing.T) {
	cycle := newCountingCycle(false)
	s := scheduler.New(context.Background(), cycle.run)

	require.NoError(t, s.Start(20*time.Millisecond))
	assert.Eventually(t, func() bool {
		return cycle.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
	settled := cycle.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, cycle.calls.Load())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    scheduler.State
		expected string
	}{
		{scheduler.Idle, "idle"},
		{scheduler.FetchInFlight, "fetch-in-flight"},
		{scheduler.Stopped, "stopped"},
		{scheduler.State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}
