//go:build windows

package scheduler

import "errors"

// ErrDaemonizeUnsupported is returned by Daemonized on platforms with no
// controlling-terminal/session model to detach from.
var ErrDaemonizeUnsupported = errors.New("daemonizing is not supported on this platform")

func daemonize(pidPath string) (string, error) {
	return "", ErrDaemonizeUnsupported
}
