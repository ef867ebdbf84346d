package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erauner12/tasksync/internal/syncengine"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) SyncAll(ctx context.Context) (syncengine.Result, error) {
	c.calls.Add(1)
	if c.err != nil {
		return syncengine.Result{}, c.err
	}
	return syncengine.Result{Success: 1, Total: 1}, nil
}

type fakeMonitor struct {
	mu   sync.Mutex
	subs map[int]func(bool)
	next int
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{subs: map[int]func(bool){}}
}

func (f *fakeMonitor) Subscribe(fn func(bool)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeMonitor) emit(online bool) {
	f.mu.Lock()
	subs := make([]func(bool), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

func (f *fakeMonitor) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTrigger_ReturnsOutcome(t *testing.T) {
	syncer := &countingSyncer{}
	s := New(syncer, nil)
	defer s.Close()

	out := <-s.Trigger(context.Background())
	if out.Err != nil || out.Result.Success != 1 {
		t.Errorf("Outcome = %+v", out)
	}
	if _, ok := <-s.Trigger(context.Background()); !ok {
		t.Error("second Trigger produced no outcome")
	}
}

func TestTrigger_ErrorIsReportedNotPanicked(t *testing.T) {
	errBoom := errors.New("boom")
	s := New(&countingSyncer{err: errBoom}, nil)
	defer s.Close()

	out := <-s.Trigger(context.Background())
	if !errors.Is(out.Err, errBoom) {
		t.Errorf("Outcome.Err = %v, want boom", out.Err)
	}
}

func TestStartAutoSync_Ticks(t *testing.T) {
	syncer := &countingSyncer{}
	s := New(syncer, nil)

	s.StartAutoSync(context.Background(), 5*time.Millisecond)
	if s.Interval() != 5*time.Millisecond {
		t.Errorf("Interval() = %v", s.Interval())
	}
	waitFor(t, func() bool { return syncer.calls.Load() >= 3 })

	s.Close()
	stopped := syncer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if syncer.calls.Load() != stopped {
		t.Errorf("runs continued after Close: %d -> %d", stopped, syncer.calls.Load())
	}
	if s.Interval() != 0 {
		t.Errorf("Interval() after stop = %v", s.Interval())
	}
}

func TestStartAutoSync_DefaultInterval(t *testing.T) {
	s := New(&countingSyncer{}, nil)
	defer s.Close()

	s.StartAutoSync(context.Background(), 0)
	if s.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", s.Interval(), DefaultInterval)
	}
}

func TestStartAutoSync_ReplacesTimer(t *testing.T) {
	mon := newFakeMonitor()
	s := New(&countingSyncer{}, mon)
	defer s.Close()

	s.StartAutoSync(context.Background(), time.Hour)
	s.StartAutoSync(context.Background(), 2*time.Hour)

	if s.Interval() != 2*time.Hour {
		t.Errorf("Interval() = %v", s.Interval())
	}
	if mon.subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1", mon.subscribers())
	}
}

func TestReconnectTriggersSync(t *testing.T) {
	syncer := &countingSyncer{}
	mon := newFakeMonitor()
	s := New(syncer, mon)

	s.StartAutoSync(context.Background(), time.Hour)

	mon.emit(false)
	time.Sleep(10 * time.Millisecond)
	if syncer.calls.Load() != 0 {
		t.Errorf("going offline triggered %d runs", syncer.calls.Load())
	}

	mon.emit(true)
	waitFor(t, func() bool { return syncer.calls.Load() == 1 })

	s.StopAutoSync()
	if mon.subscribers() != 0 {
		t.Errorf("subscribers after stop = %d", mon.subscribers())
	}
	mon.emit(true)
	s.Close()
	if syncer.calls.Load() != 1 {
		t.Errorf("runs = %d, want 1", syncer.calls.Load())
	}
}

func TestTrigger_AfterCloseIsRefused(t *testing.T) {
	syncer := &countingSyncer{}
	monitor := newFakeMonitor()
	s := New(syncer, monitor)
	s.StartAutoSync(context.Background(), time.Hour)

	s.Close()
	s.Close()

	out, ok := <-s.Trigger(context.Background())
	if !ok || !errors.Is(out.Err, ErrClosed) {
		t.Errorf("Outcome = %+v, %v; want ErrClosed", out, ok)
	}
	monitor.emit(true)
	if n := syncer.calls.Load(); n != 0 {
		t.Errorf("SyncAll calls = %d after Close, want 0", n)
	}
	if monitor.subscribers() != 0 {
		t.Errorf("subscribers = %d after Close", monitor.subscribers())
	}
}
