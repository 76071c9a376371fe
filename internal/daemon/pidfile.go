package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when a live server owns the file.
var ErrAlreadyRunning = errors.New("server already running")

// Info is the record a background server leaves in its PID file.
type Info struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
}

// PIDFile tracks a background bugboard server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Acquire records the current process as the server listening on port.
// A stale file left by a dead process is replaced.
func (p *PIDFile) Acquire(port int) error {
	if info, running := p.IsRunning(); running {
		return fmt.Errorf("%w (PID %d, port %d)", ErrAlreadyRunning, info.PID, info.Port)
	}
	return p.WriteInfo(Info{PID: os.Getpid(), Port: port, StartedAt: time.Now().UTC()})
}

// WriteInfo writes info to the file, creating the parent directory.
func (p *PIDFile) WriteInfo(info Info) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode PID file: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read reads the server record. A file holding only a bare PID is accepted.
func (p *PIDFile) Read() (Info, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Info{}, err
	}
	content := strings.TrimSpace(string(data))

	var info Info
	if strings.HasPrefix(content, "{") {
		if err := json.Unmarshal([]byte(content), &info); err != nil {
			return Info{}, fmt.Errorf("invalid PID file content: %w", err)
		}
	} else {
		pid, err := strconv.Atoi(content)
		if err != nil {
			return Info{}, fmt.Errorf("invalid PID file content: %w", err)
		}
		info.PID = pid
	}
	if info.PID <= 0 {
		return Info{}, fmt.Errorf("invalid PID file content: pid %d", info.PID)
	}
	return info, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WaitStopped polls until the recorded process has exited or timeout
// elapses. It reports whether the process is gone.
func (p *PIDFile) WaitStopped(timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, running := p.IsRunning(); !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
