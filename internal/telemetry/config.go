package telemetry

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/thermalctl/telemetry.db"
)

// Config selects the enabled history sinks. With both disabled,
// NewService returns a no-op collector.
type Config struct {
	Enabled      bool
	DBPath       string
	TraceEnabled bool
	TracePath    string
}

func DefaultConfig() Config {
	return Config{
		DBPath: defaultDBPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.TraceEnabled && c.TracePath == "" {
		return errFactory.New(ErrInvalidConfig)
	}
	return nil
}
