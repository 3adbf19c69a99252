package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var fired int32
	m.AddTimer(50*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(400 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("One-shot timer should fire exactly once, fired %d times", got)
	}
}

func TestTimerManager_Interval(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var fired int32
	m.AddTimer(0, 100*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(450 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got < 2 {
		t.Errorf("Interval timer should keep firing, fired %d times", got)
	}
}

func TestTimerManager_Remove(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var fired int32
	id := m.AddTimer(200*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.RemoveTimer(id)

	time.Sleep(400 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("Removed timer must not fire, fired %d times", got)
	}
}

func TestTimerManager_Stop(t *testing.T) {
	m := NewTimerManager()

	var fired int32
	m.AddTimer(150*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.Stop()

	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("Stopped manager must not fire timers, fired %d times", got)
	}
}
