// Package git reads identity details from the user's git configuration.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUnset is returned when a config key has no value.
var ErrUnset = errors.New("git config value not set")

// Client defines the git lookups the CLI uses to fill in bug defaults.
type Client interface {
	UserName(path string) (string, error)
	UserEmail(path string) (string, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func configValue(path, key string) (string, error) {
	out, err := exec.Command("git", "-C", path, "config", "--get", key).Output()
	if err != nil {
		// git config --get exits 1 for a missing key.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", ErrUnset
		}
		return "", fmt.Errorf("git config --get %s: %w", key, err)
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "", ErrUnset
	}
	return v, nil
}

// UserName returns user.name as seen from path.
func (c *RealClient) UserName(path string) (string, error) {
	return configValue(path, "user.name")
}

// UserEmail returns user.email as seen from path.
func (c *RealClient) UserEmail(path string) (string, error) {
	return configValue(path, "user.email")
}

// Reporter formats a reporter name from git identity. The email is used
// only when no name is set.
func Reporter(c Client, path string) (string, error) {
	if name, err := c.UserName(path); err == nil {
		return name, nil
	}
	email, err := c.UserEmail(path)
	if err != nil {
		return "", err
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at], nil
	}
	return email, nil
}
