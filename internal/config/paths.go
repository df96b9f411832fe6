package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const appName = "rpswatch"

// ConfigDir returns the configuration directory.
// Respects RPSWATCH_CONFIG_DIR override.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RPSWATCH_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// SocketPath returns the path to the daemon's Unix socket.
// macOS: $TMPDIR/rpswatch-$UID/rpswatch.sock
// Linux: $XDG_RUNTIME_DIR/rpswatch/rpswatch.sock
func SocketPath() (string, error) {
	uid := strconv.Itoa(os.Getuid())
	var dir string

	if runtime.GOOS == "darwin" {
		dir = filepath.Join(os.TempDir(), appName+"-"+uid)
	} else {
		xdgRuntime := os.Getenv("XDG_RUNTIME_DIR")
		if xdgRuntime == "" {
			xdgRuntime = filepath.Join(os.TempDir(), appName+"-"+uid)
		}
		dir = filepath.Join(xdgRuntime, appName)
	}
	return filepath.Join(dir, appName+".sock"), nil
}

// LogDir returns the directory for daemon log files.
func LogDir() (string, error) {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("log dir: %w", err)
		}
		return filepath.Join(home, "Library", "Logs", appName), nil
	}
	return inConfigDir("logs")
}

// ConfigFilePath returns the path to config.json.
func ConfigFilePath() (string, error) { return inConfigDir("config.json") }

// PIDFilePath returns the path to the daemon PID file.
func PIDFilePath() (string, error) { return inConfigDir(appName + ".pid") }

// LockFilePath returns the path to the flock file for atomic daemon start.
func LockFilePath() (string, error) { return inConfigDir(appName + ".lock") }

// SyncStatePath is the JSON file holding settings meant to follow the user
// across devices (client id, account, saved accounts, extension login).
func SyncStatePath() (string, error) { return inConfigDir("sync.json") }

// LocalStatePath is the SQLite database holding state that never leaves
// this device (status history, debug log, session pointer).
func LocalStatePath() (string, error) { return inConfigDir("local.db") }

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ReadDaemonPID reads the PID file written by the daemon.
func ReadDaemonPID() (int, string, error) {
	pidPath, err := PIDFilePath()
	if err != nil {
		return 0, "", err
	}
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, pidPath, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, pidPath, fmt.Errorf("invalid PID file %s: %w", pidPath, err)
	}
	return pid, pidPath, nil
}
