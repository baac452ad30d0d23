package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// Valid sensor drivers
const (
	DriverHwmon = "hwmon"
	DriverNVML  = "nvml"
)

// Level holds one severity band: an inclusive temperature range in
// degrees Celsius and the poll-interval window used while in that band.
type Level struct {
	Min     int `mapstructure:"min"`
	Max     int `mapstructure:"max"`
	MinTime int `mapstructure:"mintime"`
	MaxTime int `mapstructure:"maxtime"`
}

// Sensor describes one thermal sensor to supervise. Levels must either
// be empty (the default table is used) or hold exactly four bands in
// ascending severity order.
type Sensor struct {
	Name   string  `mapstructure:"name"`
	Driver string  `mapstructure:"driver"`
	Path   string  `mapstructure:"path"`
	Levels []Level `mapstructure:"levels"`
}

type Tuning struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type Telemetry struct {
	Enabled  bool   `mapstructure:"enabled"`
	Database string `mapstructure:"database"`
}

type TraceLog struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type Reaper struct {
	Helper string   `mapstructure:"helper"`
	Dirs   []string `mapstructure:"dirs"`
	User   string   `mapstructure:"user"`
}
