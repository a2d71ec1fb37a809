//go:build !windows

package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		command      []string
		wantOutput   string
		wantExitCode int
		wantErr      bool
	}{
		{
			name:       "success",
			command:    []string{"/bin/sh", "-c", "echo built"},
			wantOutput: "built\n",
		},
		{
			name:         "failure carries diagnostics",
			command:      []string{"/bin/sh", "-c", "echo 'main.c:1: error' >&2; exit 2"},
			wantOutput:   "main.c:1: error\n",
			wantExitCode: 2,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Run(context.Background(), Options{Dir: t.TempDir(), Command: tt.command, Progress: &bytes.Buffer{}})
			assert.Equal(t, tt.wantOutput, out)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var buildErr *Error
			require.True(t, errors.As(err, &buildErr))
			assert.Equal(t, tt.wantExitCode, buildErr.ExitCode)
			assert.Equal(t, tt.wantOutput, buildErr.Output)
			assert.Contains(t, buildErr.Error(), "exit code 2")
		})
	}
}

func TestRun_UsesWorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), nil, 0644))

	out, err := Run(context.Background(), Options{Dir: dir, Command: []string{"ls"}})
	require.NoError(t, err)
	assert.Contains(t, out, "marker")
}

func TestRun_MissingCommand(t *testing.T) {
	_, err := Run(context.Background(), Options{Dir: t.TempDir(), Command: []string{"/nonexistent/make"}})

	var buildErr *Error
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, -1, buildErr.ExitCode)
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}
