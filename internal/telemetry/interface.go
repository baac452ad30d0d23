package telemetry

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, reading *Reading) error
	Close() error
}

// Reading is one completed temperature measurement to persist.
type Reading struct {
	TakenAt     time.Time
	Sensor      string
	Temperature int
	Status      string
}
