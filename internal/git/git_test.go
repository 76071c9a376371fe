package git

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repo in dir with a local user config.
func initTestRepo(t *testing.T, dir string, name, email string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	cmds := [][]string{{"git", "-C", dir, "init"}}
	if name != "" {
		cmds = append(cmds, []string{"git", "-C", dir, "config", "user.name", name})
	}
	if email != "" {
		cmds = append(cmds, []string{"git", "-C", dir, "config", "user.email", email})
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

func TestRealClient_UserName(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir, "Dana Reyes", "dana@example.com")

	c := NewClient()
	name, err := c.UserName(dir)
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", name)

	email, err := c.UserEmail(dir)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", email)
}

type fakeClient struct {
	name, email string
}

func (f fakeClient) UserName(string) (string, error) {
	if f.name == "" {
		return "", ErrUnset
	}
	return f.name, nil
}

func (f fakeClient) UserEmail(string) (string, error) {
	if f.email == "" {
		return "", ErrUnset
	}
	return f.email, nil
}

func TestReporter(t *testing.T) {
	tests := []struct {
		name    string
		client  fakeClient
		want    string
		wantErr bool
	}{
		{name: "name wins", client: fakeClient{name: "Lee", email: "lee@example.com"}, want: "Lee"},
		{name: "email local part", client: fakeClient{email: "sam@example.com"}, want: "sam"},
		{name: "bare email", client: fakeClient{email: "sam"}, want: "sam"},
		{name: "nothing set", client: fakeClient{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reporter(tt.client, ".")
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnset))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
