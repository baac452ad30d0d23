package sensor

import (
	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Initialization and Lifecycle Errors
	ErrNotInitialized = errors.ErrorCode("sensor_not_initialized")
	ErrInitFailed     = errors.ErrorCode("sensor_init_failed")
	ErrDeviceNotFound = errors.ErrorCode("sensor_device_not_found")
	ErrShutdownFailed = errors.ErrorCode("sensor_shutdown_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// isNVMLSuccess checks if a Return value indicates success
func isNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
