//go:build !windows

package scheduler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"oss.nandlabs.io/slumber/config"
	"oss.nandlabs.io/slumber/errs"
	"oss.nandlabs.io/slumber/l3"
)

// daemonEnvVar marks the re-exec'd child so it knows not to fork again.
const daemonEnvVar = "SLUMBER_DAEMON_CHILD"

// pidDirEnvVar overrides the pid directory used when Daemonized is given an
// empty path; unset, it falls back to os.TempDir() like the teacher's own
// environment-driven defaults elsewhere in the library.
const pidDirEnvVar = "SLUMBER_PID_DIR"

var daemonLogger = l3.Get()

// resolvePidPath applies the pid path rules: a path with a .pid extension
// is used as-is; otherwise it is treated as a directory and the program
// name plus ".pid" is appended. The result is made absolute.
func resolvePidPath(p string) (string, error) {
	if p == "" {
		p = config.GetEnvAsString(pidDirEnvVar, os.TempDir())
	}
	if strings.ToLower(filepath.Ext(p)) != ".pid" {
		p = filepath.Join(p, programName()+".pid")
	}
	return filepath.Abs(p)
}

func programName() string {
	return filepath.Base(os.Args[0])
}

func readPidFile(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

func writePidFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// isProcessRunning sends the null signal, the standard liveness probe: no
// error or EPERM both mean the pid is in use.
func isProcessRunning(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

// daemonize implements the pre-Threaded half of WorkRuntime.Daemonized: the
// re-exec'd child renames itself and writes its own pid unconditionally; the
// existing-pid-file liveness check only makes sense in the parent, before it
// spawns that child, so it runs solely on that branch.
func daemonize(pidPath string) (string, error) {
	resolved, err := resolvePidPath(pidPath)
	if err != nil {
		return "", err
	}

	if os.Getenv(daemonEnvVar) == "1" {
		renameProcess(programName())
		if err := writePidFile(resolved, os.Getpid()); err != nil {
			return "", err
		}
		return resolved, nil
	}

	if existing, err := readPidFile(resolved); err == nil {
		if isProcessRunning(existing) {
			return "", errs.ErrProcessExists
		}
		daemonLogger.WarnF("pid file %s refers to pid %d, which is not running; replacing it", resolved, existing)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return "", err
	}
	defer devnull.Close()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonEnvVar+"=1")
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("daemonize: %w", err)
	}
	if err := writePidFile(resolved, cmd.Process.Pid); err != nil {
		return "", err
	}
	os.Exit(0)
	return "", nil
}
