package telemetry

import (
	"context"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopCollector struct{}

// NewService builds the reading-history collector for the enabled
// sinks: a no-op when nothing is enabled, the single sink when one is,
// and a composite fanning out to both otherwise.
func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	var sinks []Collector

	if cfg.Enabled {
		repo, err := NewRepository(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, &service{repo: repo, cfg: cfg})
	}

	if cfg.TraceEnabled {
		sinks = append(sinks, newTraceSink(cfg.TracePath))
	}

	switch len(sinks) {
	case 0:
		logger.Debug().Msg("Reading history disabled, using no-op collector")
		return &noopCollector{}, nil
	case 1:
		return sinks[0], nil
	default:
		return &compositeCollector{sinks: sinks}, nil
	}
}

func (s *service) Record(ctx context.Context, reading *Reading) error {
	errFactory := errors.New()

	if reading == nil {
		return errFactory.New(ErrInvalidReading)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Store(ctx, reading); err != nil {
			return errFactory.Wrap(ErrRecordingFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// No-op implementation
func (*noopCollector) Record(_ context.Context, _ *Reading) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

// compositeCollector fans a reading out to every enabled sink. The
// first error wins but every sink still sees the reading.
type compositeCollector struct {
	sinks []Collector
}

func (c *compositeCollector) Record(ctx context.Context, reading *Reading) error {
	var first error
	for _, sink := range c.sinks {
		if err := sink.Record(ctx, reading); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *compositeCollector) Close() error {
	var first error
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
