package thermal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/thermalctl/internal/logger"
)

const (
	tuningFilePrefix = "temp_"

	// maxtime is never read from the tuning file; it is always derived
	// from mintime.
	tuningMaxWaitSlack = 10 * time.Second
)

// FileTuner reloads a sensor's band table from <Dir>/temp_<name>. The
// file holds exactly four lines of "min, max, mintime". The reload is
// atomic-or-nothing: any parse failure keeps the previous levels.
type FileTuner struct {
	Dir string
}

func NewFileTuner(dir string) *FileTuner {
	return &FileTuner{Dir: dir}
}

func (t *FileTuner) Load(sensor string, current Levels) (Levels, bool) {
	path := filepath.Join(t.Dir, tuningFilePrefix+sensor)

	f, err := os.Open(path)
	if err != nil {
		logger.Debug().
			Str("sensor", sensor).
			Str("path", path).
			Msg("No thermal tuning file; no change in thermal values")
		return current, false
	}
	defer f.Close()

	levels, err := readLevels(f, current)
	if err != nil {
		logger.Info().
			Str("sensor", sensor).
			Err(err).
			Msg("Thermal tuning file discarded; no change in thermal values")
		return current, false
	}

	logger.Info().
		Str("sensor", sensor).
		Msg("(Re)read thermal tuning file; thermal values may have changed")

	return levels, true
}

func readLevels(f *os.File, current Levels) (Levels, error) {
	levels := current
	scanner := bufio.NewScanner(f)

	for i := 0; i < StatusCount; i++ {
		if !scanner.Scan() {
			return current, fmt.Errorf("syntax error in thermal tuning on line %d", i+1)
		}

		var minTemp, maxTemp, minTime int
		if _, err := fmt.Sscanf(scanner.Text(), "%d, %d, %d", &minTemp, &maxTemp, &minTime); err != nil {
			return current, fmt.Errorf("syntax error in thermal tuning on line %d", i+1)
		}

		levels[i] = Level{
			Min:     Temperature(minTemp),
			Max:     Temperature(maxTemp),
			MinWait: time.Duration(minTime) * time.Second,
			MaxWait: time.Duration(minTime)*time.Second + tuningMaxWaitSlack,
		}
	}

	return levels, nil
}
