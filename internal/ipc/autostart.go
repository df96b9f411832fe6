package ipc

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

func isStaleSocket(socketPath string) bool {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return true // exists but can't connect
	}
	conn.Close()
	return false
}

// StartTimeout is how long EnsureDaemon waits for a spawned daemon's
// socket.
const StartTimeout = 2 * time.Second

// EnsureDaemon starts the daemon unless one is already listening. An flock
// on lockPath keeps concurrent callers from spawning two.
func EnsureDaemon(socketPath, lockPath, pidPath string) error {
	if Running(socketPath) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)

	// Another caller may have started it while we waited.
	if Running(socketPath) {
		return nil
	}

	if isStaleSocket(socketPath) {
		os.Remove(socketPath)
		os.Remove(pidPath)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	cmd := exec.Command(exe, "daemon")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	cmd.Process.Release()

	deadline := time.Now().Add(StartTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		if Running(socketPath) {
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within %s", StartTimeout)
}
