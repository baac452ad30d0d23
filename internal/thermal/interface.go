package thermal

import (
	"context"
	"time"
)

// Status is the severity band of a sensor or of the whole device.
// Ordinal comparison is meaningful: a higher value is more severe.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusAlert
	StatusFatal

	StatusCount = 4
)

// String returns the wire name of the status, as carried by the
// status-change notification and the status query.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusWarning:
		return "warning"
	case StatusAlert:
		return "alert"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Temperature is a reading in degrees Celsius after normalization.
type Temperature int

// ReadingFailed is the sentinel a Source completes with when the
// reading could not be obtained.
const ReadingFailed = -1

// Level holds one band's inclusive temperature range and the poll
// window used while the sensor sits in that band.
type Level struct {
	Min     Temperature
	Max     Temperature
	MinWait time.Duration
	MaxWait time.Duration
}

// Levels is the per-sensor band table, indexed by Status. Ranges are
// expected to be contiguous and increasing across the four bands;
// that is an input invariant, not checked at run time.
type Levels [StatusCount]Level

// Source is the asynchronous read capability of one sensor. Request
// initiates a reading and returns whether the request was accepted.
// On acceptance, complete is invoked exactly once, from any goroutine,
// with the raw reading or ReadingFailed.
type Source interface {
	Request(complete func(raw int)) bool
}

// SensorConfig describes one sensor at registration time. It is stored
// by value, so the registered object owns an independent copy.
type SensorConfig struct {
	Name   string
	Levels Levels
	Source Source
}

// Notifier receives the edge-triggered aggregate indications.
type Notifier interface {
	ThermalStatus(status Status)
	Overheat(overheated bool)
}

// Reading is one completed temperature measurement.
type Reading struct {
	TakenAt     time.Time
	Sensor      string
	Temperature Temperature
	Status      Status
}

// Recorder is the optional history sink, invoked once per completed
// reading.
type Recorder interface {
	Record(ctx context.Context, reading *Reading) error
}

// Tuner is the optional threshold-reload port. Load returns the levels
// to use for the sensor and whether they changed; on any parse problem
// it returns current unchanged.
type Tuner interface {
	Load(sensor string, current Levels) (Levels, bool)
}

// Waker is the external wake service. Schedule arms a wakeup for ref
// delivered no earlier than min and no later than max from now; a new
// Schedule for the same ref supersedes the previous one. Stop cancels
// all armed wakeups.
type Waker interface {
	Schedule(ref any, min, max time.Duration)
	Stop()
}
