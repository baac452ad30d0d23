package thermal_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout  = 2 * time.Second
	quietTimeout = 100 * time.Millisecond
)

type stubSource struct {
	accept   bool
	requests chan func(raw int)
}

func newStubSource() *stubSource {
	return &stubSource{
		accept:   true,
		requests: make(chan func(raw int), 16),
	}
}

func (s *stubSource) Request(complete func(raw int)) bool {
	if !s.accept {
		return false
	}
	s.requests <- complete
	return true
}

type scheduled struct {
	ref      any
	min, max time.Duration
}

type stubWaker struct {
	schedules chan scheduled
}

func newStubWaker() *stubWaker {
	return &stubWaker{schedules: make(chan scheduled, 16)}
}

func (w *stubWaker) Schedule(ref any, min, max time.Duration) {
	w.schedules <- scheduled{ref: ref, min: min, max: max}
}

func (w *stubWaker) Stop() {}

type stubNotifier struct {
	statuses  chan thermal.Status
	overheats chan bool
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{
		statuses:  make(chan thermal.Status, 16),
		overheats: make(chan bool, 16),
	}
}

func (n *stubNotifier) ThermalStatus(status thermal.Status) { n.statuses <- status }
func (n *stubNotifier) Overheat(overheated bool)            { n.overheats <- overheated }

type harness struct {
	manager  *thermal.Manager
	waker    *stubWaker
	notifier *stubNotifier
}

func newHarness(t *testing.T, opts ...thermal.Option) *harness {
	t.Helper()

	h := &harness{
		waker:    newStubWaker(),
		notifier: newStubNotifier(),
	}
	opts = append(opts, thermal.WithWaker(h.waker), thermal.WithNotifier(h.notifier))
	h.manager = thermal.NewManager(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = h.manager.Run(ctx) }()

	return h
}

func (h *harness) register(t *testing.T, name string, source thermal.Source) *thermal.Object {
	t.Helper()

	obj, err := h.manager.Register(thermal.SensorConfig{
		Name:   name,
		Levels: testLevels(),
		Source: source,
	})
	require.NoError(t, err)

	return obj
}

func waitRequest(t *testing.T, source *stubSource) func(raw int) {
	t.Helper()

	select {
	case complete := <-source.requests:
		return complete
	case <-time.After(waitTimeout):
		t.Fatal("no temperature request issued")
		return nil
	}
}

func waitSchedule(t *testing.T, waker *stubWaker) scheduled {
	t.Helper()

	select {
	case s := <-waker.schedules:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("no wake scheduled")
		return scheduled{}
	}
}

func waitStatus(t *testing.T, notifier *stubNotifier) thermal.Status {
	t.Helper()

	select {
	case s := <-notifier.statuses:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("no status notification")
		return 0
	}
}

func assertNoNotification(t *testing.T, notifier *stubNotifier) {
	t.Helper()

	select {
	case s := <-notifier.statuses:
		t.Fatalf("unexpected status notification: %v", s)
	case o := <-notifier.overheats:
		t.Fatalf("unexpected overheat notification: %v", o)
	case <-time.After(quietTimeout):
	}
}

// completeReading drives one full poll cycle: deliver the reading and
// wait for the re-arm that ends the cycle.
func completeReading(t *testing.T, h *harness, source *stubSource, raw int) scheduled {
	t.Helper()

	complete := waitRequest(t, source)
	complete(raw)
	return waitSchedule(t, h.waker)
}

func TestRegistrationTriggersImmediatePoll(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()

	h.register(t, "core", source)
	waitRequest(t, source)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Register(thermal.SensorConfig{Source: newStubSource()})
	require.Error(t, err)

	_, err = h.manager.Register(thermal.SensorConfig{Name: "core"})
	require.Error(t, err)
}

func TestLadderWalkAndRearmWindow(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	obj := h.register(t, "core", source)

	rearm := completeReading(t, h, source, 95)

	assert.Equal(t, thermal.StatusFatal, h.manager.Status())
	assert.Same(t, obj, rearm.ref)
	// the wake window follows the post-classification band
	assert.Equal(t, 5*time.Second, rearm.min)
	assert.Equal(t, 15*time.Second, rearm.max)

	assert.Equal(t, thermal.StatusFatal, waitStatus(t, h.notifier))
}

func TestRearmWindowFollowsBandDown(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	obj := h.register(t, "core", source)

	rearm := completeReading(t, h, source, 45)
	assert.Equal(t, 30*time.Second, rearm.min)
	assert.Equal(t, 60*time.Second, rearm.max)

	h.manager.Wake(obj)
	rearm = completeReading(t, h, source, 20)
	assert.Equal(t, 60*time.Second, rearm.min)
	assert.Equal(t, 120*time.Second, rearm.max)
}

func TestFailedReadingKeepsStatusAndRearms(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	obj := h.register(t, "core", source)

	completeReading(t, h, source, 95)
	assert.Equal(t, thermal.StatusFatal, waitStatus(t, h.notifier))
	<-h.notifier.overheats

	h.manager.Wake(obj)
	rearm := completeReading(t, h, source, thermal.ReadingFailed)

	assert.Equal(t, thermal.StatusFatal, h.manager.Status(), "failure must not change status")
	// retry timing still follows the current band's window
	assert.Equal(t, 5*time.Second, rearm.min)
	assert.Equal(t, 15*time.Second, rearm.max)
	assertNoNotification(t, h.notifier)
}

func TestRejectedRequestDoesNotRearm(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	source.accept = false
	obj := h.register(t, "core", source)

	select {
	case <-h.waker.schedules:
		t.Fatal("rejected request must not schedule a wake")
	case <-time.After(quietTimeout):
	}

	// the object stays pollable from an external wake
	source.accept = true
	h.manager.Wake(obj)
	waitRequest(t, source)
}

func TestAtMostOneInFlightRequest(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	obj := h.register(t, "core", source)

	complete := waitRequest(t, source)

	h.manager.Wake(obj)
	select {
	case <-source.requests:
		t.Fatal("second request issued while one is in flight")
	case <-time.After(quietTimeout):
	}

	complete(30)
	waitSchedule(t, h.waker)

	h.manager.Wake(obj)
	waitRequest(t, source)
}

func TestAggregationAndEdgeNotification(t *testing.T) {
	h := newHarness(t)
	first := newStubSource()
	second := newStubSource()
	a := h.register(t, "core", first)
	b := h.register(t, "battery", second)

	completeReading(t, h, first, 45)
	assert.Equal(t, thermal.StatusWarning, waitStatus(t, h.notifier))

	completeReading(t, h, second, 65)
	assert.Equal(t, thermal.StatusAlert, waitStatus(t, h.notifier))
	assert.Equal(t, thermal.StatusAlert, h.manager.Status())

	// unchanged reading: no object change, no notification
	h.manager.Wake(a)
	completeReading(t, h, first, 45)
	assertNoNotification(t, h.notifier)

	// object change that does not move the aggregate: no notification
	h.manager.Wake(a)
	completeReading(t, h, first, 65)
	assertNoNotification(t, h.notifier)

	h.manager.Wake(a)
	completeReading(t, h, first, 45)
	assertNoNotification(t, h.notifier)

	// demoting the alert holder drops the aggregate to the other
	// object's band, with exactly one notification
	h.manager.Wake(b)
	completeReading(t, h, second, 20)
	assert.Equal(t, thermal.StatusWarning, waitStatus(t, h.notifier))
	assert.Equal(t, thermal.StatusWarning, h.manager.Status())
	assertNoNotification(t, h.notifier)
}

func TestOverheatEdges(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	obj := h.register(t, "core", source)

	completeReading(t, h, source, 95)
	assert.Equal(t, thermal.StatusFatal, waitStatus(t, h.notifier))
	assert.True(t, <-h.notifier.overheats, "entering fatal must broadcast overheated=true")

	h.manager.Wake(obj)
	completeReading(t, h, source, 45)
	assert.Equal(t, thermal.StatusWarning, waitStatus(t, h.notifier))
	assert.False(t, <-h.notifier.overheats, "leaving fatal must broadcast overheated=false")

	// moves among non-fatal bands emit no overheat broadcast
	h.manager.Wake(obj)
	completeReading(t, h, source, 65)
	assert.Equal(t, thermal.StatusAlert, waitStatus(t, h.notifier))
	select {
	case o := <-h.notifier.overheats:
		t.Fatalf("unexpected overheat broadcast: %v", o)
	case <-time.After(quietTimeout):
	}
}

func TestUnregisterIsInert(t *testing.T) {
	h := newHarness(t)
	source := newStubSource()
	obj := h.register(t, "core", source)

	completeReading(t, h, source, 65)
	assert.Equal(t, thermal.StatusAlert, waitStatus(t, h.notifier))

	h.manager.Unregister(obj)

	// the object keeps polling and keeps contributing to the aggregate
	h.manager.Wake(obj)
	completeReading(t, h, source, 65)
	assert.Equal(t, thermal.StatusAlert, h.manager.Status())
}

func TestRecorderSeesEveryCompletedReading(t *testing.T) {
	readings := make(chan *thermal.Reading, 16)
	recorder := recorderFunc(func(_ context.Context, r *thermal.Reading) error {
		readings <- r
		return nil
	})

	h := newHarness(t, thermal.WithRecorder(recorder))
	source := newStubSource()
	obj := h.register(t, "core", source)

	completeReading(t, h, source, 55000)

	select {
	case r := <-readings:
		assert.Equal(t, "core", r.Sensor)
		assert.Equal(t, thermal.Temperature(55), r.Temperature)
		assert.Equal(t, thermal.StatusWarning, r.Status)
	case <-time.After(waitTimeout):
		t.Fatal("reading not recorded")
	}

	// failed readings are not recorded
	h.manager.Wake(obj)
	completeReading(t, h, source, thermal.ReadingFailed)
	select {
	case r := <-readings:
		t.Fatalf("failed reading recorded: %+v", r)
	case <-time.After(quietTimeout):
	}
}

type recorderFunc func(ctx context.Context, reading *thermal.Reading) error

func (f recorderFunc) Record(ctx context.Context, reading *thermal.Reading) error {
	return f(ctx, reading)
}
