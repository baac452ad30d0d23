package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultConfigName = "thermalctl.conf"
	defaultConfigPath = "/etc"
	envPrefix         = "THERMALCTL"
	envConfigFile     = "THERMALCTL_CONFIG"

	defaultTuningDir    = "/etc/thermalctl"
	defaultTelemetryDB  = "/var/lib/thermalctl/telemetry.db"
	defaultTracePath    = "/var/lib/thermalctl/thermal.log"
	defaultReaperHelper = "/usr/sbin/rpdir"
	defaultReaperUser   = "nobody"

	sensorLevelCount = 4
)

type Config struct {
	LogLevel  string    `mapstructure:"log_level"`
	Debug     bool      `mapstructure:"debug"`
	Verbose   bool      `mapstructure:"verbose"`
	Tuning    Tuning    `mapstructure:"tuning"`
	Telemetry Telemetry `mapstructure:"telemetry"`
	TraceLog  TraceLog  `mapstructure:"tracelog"`
	Reaper    Reaper    `mapstructure:"reaper"`
	Sensors   []Sensor  `mapstructure:"sensors"`
}

// DefaultSensorLevels returns the band table used when a sensor does not
// configure its own. Bands are contiguous and poll windows shorten as
// severity rises.
func DefaultSensorLevels() []Level {
	return []Level{
		{Min: -1, Max: 59, MinTime: 60, MaxTime: 120},
		{Min: 60, Max: 79, MinTime: 30, MaxTime: 60},
		{Min: 80, Max: 94, MinTime: 5, MaxTime: 15},
		{Min: 95, Max: 999, MinTime: 5, MaxTime: 15},
	}
}

// DefaultSensor is used when no sensors are configured at all.
func DefaultSensor() Sensor {
	return Sensor{
		Name:   "core",
		Driver: DriverHwmon,
		Path:   "/sys/class/thermal/thermal_zone0/temp",
		Levels: DefaultSensorLevels(),
	}
}

// Load reads configuration from flags, the config file and the
// environment, in descending order of precedence, and validates it.
func Load() (*Config, error) {
	errFactory := errors.New()

	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	configFile := flags.String("config", "", "Path to configuration file")
	logLevel := flags.String("log-level", "", "Log level (debug, info, warning, error)")
	debug := flags.Bool("debug", false, "Enable debugging mode")
	verbose := flags.Bool("verbose", false, "Enable verbose logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("tuning.enabled", false)
	v.SetDefault("tuning.dir", defaultTuningDir)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.database", defaultTelemetryDB)
	v.SetDefault("tracelog.enabled", false)
	v.SetDefault("tracelog.path", defaultTracePath)
	v.SetDefault("reaper.helper", defaultReaperHelper)
	v.SetDefault("reaper.dirs", []string{"/var/tmp"})
	v.SetDefault("reaper.user", defaultReaperUser)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := *configFile
	if explicit == "" {
		explicit = os.Getenv(envConfigFile)
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Flags win over file and environment
	if flags.Changed("log-level") {
		v.Set("log_level", *logLevel)
	}
	if flags.Changed("debug") {
		v.Set("debug", *debug)
	}
	if flags.Changed("verbose") {
		v.Set("verbose", *verbose)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Sensors) == 0 {
		c.Sensors = []Sensor{DefaultSensor()}
	}

	for i := range c.Sensors {
		sensor := &c.Sensors[i]
		if len(sensor.Levels) == 0 {
			sensor.Levels = DefaultSensorLevels()
		}
		for j := range sensor.Levels {
			if sensor.Levels[j].MaxTime == 0 {
				sensor.Levels[j].MaxTime = sensor.Levels[j].MinTime + 10
			}
		}
	}
}

// Validate checks the loaded configuration for structural errors.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithMessage(errors.ErrInvalidLogLevel,
			"invalid log level: "+c.LogLevel)
	}

	for i := range c.Sensors {
		sensor := &c.Sensors[i]
		if sensor.Name == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig,
				"sensor without a name")
		}
		switch sensor.Driver {
		case DriverHwmon:
			if sensor.Path == "" {
				return errFactory.WithMessage(errors.ErrInvalidConfig,
					"hwmon sensor "+sensor.Name+" without a path")
			}
		case DriverNVML:
		default:
			return errFactory.WithMessage(errors.ErrInvalidConfig,
				"sensor "+sensor.Name+" has unknown driver "+sensor.Driver)
		}
		if len(sensor.Levels) != sensorLevelCount {
			return errFactory.WithMessage(errors.ErrInvalidConfig,
				"sensor "+sensor.Name+" must configure exactly four levels")
		}
		for j := range sensor.Levels {
			if sensor.Levels[j].MinTime > sensor.Levels[j].MaxTime {
				return errFactory.WithMessage(errors.ErrInvalidInterval,
					"sensor "+sensor.Name+" has mintime above maxtime")
			}
		}
	}

	return nil
}
