package heartbeat_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/heartbeat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (*heartbeat.Service, chan any) {
	wakes := make(chan any, 16)
	service := heartbeat.New(func(ref any) { wakes <- ref })
	return service, wakes
}

func waitWake(t *testing.T, wakes chan any, timeout time.Duration) any {
	t.Helper()

	select {
	case ref := <-wakes:
		return ref
	case <-time.After(timeout):
		t.Fatal("no wake delivered")
		return nil
	}
}

func TestScheduleDelivers(t *testing.T) {
	service, wakes := collect()
	defer service.Stop()

	service.Schedule("core", 0, 20*time.Millisecond)
	assert.Equal(t, "core", waitWake(t, wakes, time.Second))
}

func TestWakeNotBeforeMin(t *testing.T) {
	service, wakes := collect()
	defer service.Stop()

	start := time.Now()
	service.Schedule("core", 50*time.Millisecond, 80*time.Millisecond)
	waitWake(t, wakes, time.Second)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestOverlappingWindowsCoalesce(t *testing.T) {
	service, wakes := collect()
	defer service.Stop()

	// the long wakeup's window is already open when the short one's
	// deadline expires, so both ride the same fire
	start := time.Now()
	service.Schedule("long", 0, time.Second)
	service.Schedule("short", 0, 30*time.Millisecond)

	first := waitWake(t, wakes, time.Second)
	second := waitWake(t, wakes, time.Second)

	assert.ElementsMatch(t, []any{"long", "short"}, []any{first, second})
	assert.Less(t, time.Since(start), 500*time.Millisecond, "the long wakeup must not wait for its own deadline")
}

func TestScheduleSupersedes(t *testing.T) {
	service, wakes := collect()
	defer service.Stop()

	service.Schedule("core", 0, 5*time.Second)
	service.Schedule("core", 0, 30*time.Millisecond)

	waitWake(t, wakes, time.Second)

	select {
	case ref := <-wakes:
		t.Fatalf("superseded wakeup delivered: %v", ref)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopCancelsEverything(t *testing.T) {
	service, wakes := collect()

	service.Schedule("core", 0, 20*time.Millisecond)
	service.Stop()

	select {
	case ref := <-wakes:
		t.Fatalf("wakeup delivered after Stop: %v", ref)
	case <-time.After(100 * time.Millisecond):
	}

	// scheduling after Stop is a no-op
	service.Schedule("core", 0, 10*time.Millisecond)
	select {
	case ref := <-wakes:
		t.Fatalf("wakeup delivered after Stop: %v", ref)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIndependentWindowsFireSeparately(t *testing.T) {
	service, wakes := collect()
	defer service.Stop()

	service.Schedule("first", 0, 20*time.Millisecond)
	require.Equal(t, "first", waitWake(t, wakes, time.Second))

	service.Schedule("second", 0, 20*time.Millisecond)
	require.Equal(t, "second", waitWake(t, wakes, time.Second))
}
