package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

const traceFilePerm = 0o644

// traceSink appends one line per completed reading to a plain text
// file: "<unix-seconds> <seconds-since-start> <celsius> <STATUS>".
// The file is opened lazily; if opening fails, the failure is logged
// once and the sink stays disabled for the process lifetime.
type traceSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	failed bool
	start  time.Time
}

func newTraceSink(path string) *traceSink {
	return &traceSink{path: path}
}

func (t *traceSink) Record(_ context.Context, reading *Reading) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failed {
		return nil
	}

	if t.file == nil {
		file, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, traceFilePerm)
		if err != nil {
			logger.Error().Err(err).Str("path", t.path).Msg("Error opening thermal trace log")
			t.failed = true
			return nil
		}
		t.file = file
		t.start = time.Now()
	}

	_, err := fmt.Fprintf(t.file, "%d %d %d %s\n",
		reading.TakenAt.Unix(),
		int(time.Since(t.start).Seconds()),
		reading.Temperature,
		strings.ToUpper(reading.Status),
	)
	if err != nil {
		return errors.New().Wrap(ErrRecordingFailed, err)
	}

	return nil
}

func (t *traceSink) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}

	err := t.file.Close()
	t.file = nil
	t.failed = true
	if err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}
