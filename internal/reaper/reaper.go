// Package reaper launches the external temporary-file cleanup helper.
// At most one helper instance runs at a time; it runs at lowered
// priority and, when the daemon has root privileges, under an
// unprivileged account.
package reaper

import (
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"sync"
	"syscall"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

const (
	helperPriority = 5
	fallbackUser   = "nobody"
)

type Config struct {
	Helper string
	Dirs   []string
	User   string
}

type Reaper struct {
	cfg        Config
	errFactory errors.Factory

	mu  sync.Mutex
	cmd *exec.Cmd
}

func New(cfg Config) *Reaper {
	return &Reaper{
		cfg:        cfg,
		errFactory: errors.New(),
	}
}

// Trigger starts one helper run. A trigger while a run is outstanding
// is a no-op.
func (r *Reaper) Trigger() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		logger.Debug().
			Int("pid", r.cmd.Process.Pid).
			Msg("Reaper process already running")
		return nil
	}

	cmd := exec.Command(r.cfg.Helper, r.cfg.Dirs...)
	if err := r.dropPrivileges(cmd); err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return r.errFactory.Wrap(errors.ErrOperationFailed, err)
	}

	// The daemon may run at raised priority; the helper should not
	// inherit it.
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, cmd.Process.Pid, helperPriority); err != nil {
		logger.Debug().Err(err).Msg("Failed to lower reaper priority")
	}

	logger.Debug().Int("pid", cmd.Process.Pid).Msg("Reaper process started")
	r.cmd = cmd
	go r.await(cmd)

	return nil
}

func (r *Reaper) await(cmd *exec.Cmd) {
	err := cmd.Wait()

	r.mu.Lock()
	r.cmd = nil
	r.mu.Unlock()

	if err != nil {
		logger.Warn().
			Int("pid", cmd.Process.Pid).
			Err(err).
			Msg("Reaper process failed")
		return
	}

	logger.Debug().Int("pid", cmd.Process.Pid).Msg("Reaper process finished")
}

// Running reports whether a helper instance is outstanding.
func (r *Reaper) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Shutdown forcibly terminates an outstanding helper run.
func (r *Reaper) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return
	}

	logger.Info().Int("pid", r.cmd.Process.Pid).Msg("Killing reaper process")
	if err := r.cmd.Process.Kill(); err != nil {
		logger.Warn().Err(err).Msg("Failed to kill reaper process")
	}
}

// dropPrivileges arranges for the helper to run under the configured
// unprivileged account. Only effective when running as root; otherwise
// the helper keeps the daemon's own credentials.
func (r *Reaper) dropPrivileges(cmd *exec.Cmd) error {
	if os.Geteuid() != 0 {
		return nil
	}

	account, err := user.Lookup(r.cfg.User)
	if err != nil {
		account, err = user.Lookup(fallbackUser)
	}
	if err != nil {
		return r.errFactory.Wrap(errors.ErrResourceNotFound, err)
	}

	uid, err := strconv.ParseUint(account.Uid, 10, 32)
	if err != nil {
		return r.errFactory.Wrap(errors.ErrInternal, err)
	}
	gid, err := strconv.ParseUint(account.Gid, 10, 32)
	if err != nil {
		return r.errFactory.Wrap(errors.ErrInternal, err)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid: uint32(uid),
			Gid: uint32(gid),
		},
	}

	return nil
}
