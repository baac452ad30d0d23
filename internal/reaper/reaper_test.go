package reaper_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/reaper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRunsHelperOnce(t *testing.T) {
	cleaner := reaper.New(reaper.Config{
		Helper: "sleep",
		Dirs:   []string{"0.2"},
	})

	require.NoError(t, cleaner.Trigger())
	assert.True(t, cleaner.Running())

	// a second trigger while one is outstanding is a no-op
	require.NoError(t, cleaner.Trigger())

	assert.Eventually(t, func() bool { return !cleaner.Running() },
		2*time.Second, 20*time.Millisecond, "helper should finish")
}

func TestTriggerAgainAfterCompletion(t *testing.T) {
	cleaner := reaper.New(reaper.Config{
		Helper: "true",
	})

	require.NoError(t, cleaner.Trigger())
	require.Eventually(t, func() bool { return !cleaner.Running() },
		2*time.Second, 20*time.Millisecond)

	require.NoError(t, cleaner.Trigger())
	require.Eventually(t, func() bool { return !cleaner.Running() },
		2*time.Second, 20*time.Millisecond)
}

func TestTriggerMissingHelper(t *testing.T) {
	cleaner := reaper.New(reaper.Config{
		Helper: "/nonexistent/rpdir",
		Dirs:   []string{"/var/tmp"},
	})

	require.Error(t, cleaner.Trigger())
	assert.False(t, cleaner.Running())
}

func TestShutdownKillsOutstandingHelper(t *testing.T) {
	cleaner := reaper.New(reaper.Config{
		Helper: "sleep",
		Dirs:   []string{"30"},
	})

	require.NoError(t, cleaner.Trigger())
	require.True(t, cleaner.Running())

	cleaner.Shutdown()

	assert.Eventually(t, func() bool { return !cleaner.Running() },
		2*time.Second, 20*time.Millisecond, "killed helper should be reaped")
}
