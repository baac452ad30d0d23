package thermal

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/heartbeat"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

const eventQueueSize = 64

type eventKind int

const (
	eventRegister eventKind = iota
	eventWake
	eventComplete
)

type event struct {
	kind eventKind
	obj  *Object
	raw  int
}

// Manager is the process-scoped thermal supervisor. It owns the set of
// registered objects, the device-wide aggregate status and the sticky
// overheat flag. All state transitions happen on the single goroutine
// running Run; registrations, timer wakes and reading completions are
// funneled into it as events.
type Manager struct {
	events  chan event
	done    chan struct{}
	objects []*Object

	current    Status // aggregate, max over objects; also the last indicated value
	overheated bool   // sticky overheat edge flag

	mirror atomic.Int32 // aggregate for the external status query

	notifier Notifier
	recorder Recorder
	tuner    Tuner
	waker    Waker

	errFactory errors.Factory
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the aggregate indication sink.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithRecorder sets the optional reading history sink.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithTuner sets the optional threshold-reload port.
func WithTuner(t Tuner) Option {
	return func(m *Manager) { m.tuner = t }
}

// WithWaker replaces the default heartbeat wake service.
func WithWaker(w Waker) Option {
	return func(m *Manager) { m.waker = w }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		events:     make(chan event, eventQueueSize),
		done:       make(chan struct{}),
		notifier:   noopNotifier{},
		recorder:   noopRecorder{},
		errFactory: errors.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.waker == nil {
		m.waker = heartbeat.New(m.Wake)
	}

	return m
}

// Register adds a sensor to the supervised set. The object starts at
// StatusNormal and is polled once as soon as the event loop picks up
// the registration.
func (m *Manager) Register(conf SensorConfig) (*Object, error) {
	if conf.Name == "" {
		return nil, m.errFactory.New(ErrMissingName)
	}
	if conf.Source == nil {
		return nil, m.errFactory.WithData(ErrMissingSource, conf.Name)
	}

	obj := newObject(conf)
	if !m.enqueue(event{kind: eventRegister, obj: obj}) {
		return nil, m.errFactory.WithData(ErrManagerStopped, conf.Name)
	}

	return obj, nil
}

// Unregister accepts the request but does not remove the object: it
// keeps polling and keeps contributing to the aggregate.
// TODO: drop the object from the registry and recompute the aggregate
// once removal semantics are settled.
func (m *Manager) Unregister(obj *Object) {
	logger.Debug().Str("sensor", obj.Name()).Msg("Unregister is a no-op")
}

// Wake is the re-entry point for the wake service: it triggers one
// poll cycle for the referenced object.
func (m *Manager) Wake(ref any) {
	obj, ok := ref.(*Object)
	if !ok {
		logger.Warn().Msg("Wake with unknown reference")
		return
	}

	m.enqueue(event{kind: eventWake, obj: obj})
}

// Status returns the current device-wide aggregate band. It is safe to
// call from any goroutine.
func (m *Manager) Status() Status {
	return Status(m.mirror.Load())
}

// Run consumes events until ctx is cancelled. It must be called
// exactly once.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.waker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-m.events:
			switch e.kind {
			case eventRegister:
				m.objects = append(m.objects, e.obj)
				m.poll(e.obj)
			case eventWake:
				logger.Debug().Str("sensor", e.obj.Name()).Msg("Checking thermal object")
				m.poll(e.obj)
			case eventComplete:
				m.complete(ctx, e.obj, e.raw)
			}
		}
	}
}

func (m *Manager) enqueue(e event) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.events <- e:
		return true
	case <-m.done:
		return false
	}
}

// poll starts one reading request for the object. A sensor that is
// slow to respond is never double-queried: a pending request makes
// this a no-op. A synchronously rejected request does not re-arm; the
// object stays un-polled until the next externally triggered wake.
func (m *Manager) poll(obj *Object) {
	if obj.requestPending {
		logger.Debug().Str("sensor", obj.Name()).Msg("Still waiting for temperature")
		return
	}

	logger.Debug().Str("sensor", obj.Name()).Msg("Requesting temperature")
	obj.requestPending = true
	accepted := obj.conf.Source.Request(func(raw int) {
		m.enqueue(event{kind: eventComplete, obj: obj, raw: raw})
	})
	if !accepted {
		obj.requestPending = false
		logger.Debug().Str("sensor", obj.Name()).Msg("Error requesting temperature")
	}
}

// complete handles one reading completion: classification, aggregate
// recomputation, indication and exactly one re-arm, all before control
// returns to the event loop.
func (m *Manager) complete(ctx context.Context, obj *Object, raw int) {
	obj.requestPending = false

	if raw == ReadingFailed {
		logger.Debug().Str("sensor", obj.Name()).Msg("Temperature request failed")
		m.rearm(obj)
		return
	}

	if m.tuner != nil {
		if levels, changed := m.tuner.Load(obj.Name(), obj.conf.Levels); changed {
			obj.conf.Levels = levels
		}
	}

	previous := obj.status
	status, temperature := Classify(raw, obj.status, &obj.conf.Levels)
	obj.status = status

	logger.Debug().
		Str("sensor", obj.Name()).
		Int("temperature", int(temperature)).
		Str("status", status.String()).
		Msg("")

	if status != previous {
		previouslyIndicated := m.current
		m.current = m.worstStatus()
		m.mirror.Store(int32(m.current))

		if m.current != previouslyIndicated {
			m.indicate()
		}
	}

	m.record(ctx, obj, temperature)
	m.rearm(obj)
}

func (m *Manager) worstStatus() Status {
	status := StatusNormal
	for _, obj := range m.objects {
		if obj.status > status {
			status = obj.status
		}
	}

	return status
}

// indicate sends the status-change notification and evaluates the
// sticky overheat flag. The overheat broadcast is gated on the
// aggregate having changed and the new aggregate being fatal, not on
// the flag's own transition, so entering fatal again from a different
// recompute re-sends the broadcast.
func (m *Manager) indicate() {
	m.notifier.ThermalStatus(m.current)
	logger.Info().Str("status", m.current.String()).Msg("Thermal status changed")

	if m.current == StatusFatal {
		m.notifier.Overheat(true)
		m.overheated = true
		logger.Error().Msg("Device overheated")
	} else if m.overheated {
		m.notifier.Overheat(false)
		m.overheated = false
		logger.Info().Msg("Device no longer overheated")
	}
}

func (m *Manager) record(ctx context.Context, obj *Object, temperature Temperature) {
	reading := &Reading{
		TakenAt:     time.Now(),
		Sensor:      obj.Name(),
		Temperature: temperature,
		Status:      obj.status,
	}
	if err := m.recorder.Record(ctx, reading); err != nil {
		logger.Warn().Err(err).Str("sensor", obj.Name()).Msg("Failed to record reading")
	}
}

// rearm schedules the next poll using the post-classification band's
// window. Every completion re-arms exactly once, so the object is
// never left without a pending wake.
func (m *Manager) rearm(obj *Object) {
	level := &obj.conf.Levels[obj.status]
	m.waker.Schedule(obj, level.MinWait, level.MaxWait)
}

type noopNotifier struct{}

func (noopNotifier) ThermalStatus(Status) {}
func (noopNotifier) Overheat(bool)        {}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, *Reading) error { return nil }
