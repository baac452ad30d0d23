package thermal

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	// Registration Errors
	ErrMissingName   = errors.ErrorCode("thermal_missing_sensor_name")
	ErrMissingSource = errors.ErrorCode("thermal_missing_sensor_source")

	// Lifecycle Errors
	ErrManagerStopped = errors.ErrorCode("thermal_manager_stopped")
)
