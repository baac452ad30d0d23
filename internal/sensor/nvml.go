package sensor

import (
	"sync"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVML reads a GPU's temperature through the NVIDIA management
// library.
type NVML struct {
	name   string
	device nvml.Device

	mu     sync.Mutex
	closed bool
}

func NewNVML(name string, index int) (*NVML, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !isNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !isNVMLSuccess(ret) {
		_ = nvml.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	if deviceName, ret := device.GetName(); isNVMLSuccess(ret) {
		logger.Info().Str("sensor", name).Msgf("Detected GPU: %v", deviceName)
	} else {
		logger.Warn().Str("sensor", name).Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return &NVML{
		name:   name,
		device: device,
	}, nil
}

// Request reads the GPU temperature on its own goroutine. Requests are
// rejected once the source is closed.
func (n *NVML) Request(complete func(raw int)) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return false
	}

	go func() {
		temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
		if !isNVMLSuccess(ret) {
			logger.Debug().
				Str("sensor", n.name).
				Msgf("Failed to read GPU temperature: %v", nvml.ErrorString(ret))
			complete(thermal.ReadingFailed)
			return
		}
		complete(int(temp))
	}()

	return true
}

// Close shuts NVML down. Outstanding requests may still complete.
func (n *NVML) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	if ret := nvml.Shutdown(); !isNVMLSuccess(ret) {
		return errors.New().Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	return nil
}
