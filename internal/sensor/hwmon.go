// Package sensor implements the thermal.Source read capability for the
// sensor types the daemon knows about.
package sensor

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/thermal"
)

// Hwmon reads a sysfs temperature attribute, e.g.
// /sys/class/thermal/thermal_zone0/temp or
// /sys/class/hwmon/hwmonN/tempM_input. Values are passed through raw;
// sysfs typically reports millidegrees, which classification
// normalizes.
type Hwmon struct {
	name string
	path string
}

func NewHwmon(name, path string) *Hwmon {
	return &Hwmon{
		name: name,
		path: path,
	}
}

// Request reads the attribute on its own goroutine and completes with
// the raw value, or with thermal.ReadingFailed when the file cannot be
// read or parsed. It always accepts.
func (h *Hwmon) Request(complete func(raw int)) bool {
	go func() {
		complete(h.read())
	}()

	return true
}

func (h *Hwmon) read() int {
	data, err := os.ReadFile(h.path)
	if err != nil {
		logger.Debug().
			Str("sensor", h.name).
			Str("path", h.path).
			Err(err).
			Msg("Failed to read hwmon attribute")
		return thermal.ReadingFailed
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		logger.Debug().
			Str("sensor", h.name).
			Str("path", h.path).
			Err(err).
			Msg("Failed to parse hwmon attribute")
		return thermal.ReadingFailed
	}

	return value
}
