// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/authd", dir)
}

func TestConfigDir_RelativeEnvVarIgnored(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "relative/config")
	t.Setenv("HOME", "/home/test")

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/test/.config/authd", dir)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/test")

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/test/.config/authd", dir)
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	_, err := ConfigDir()
	require.Error(t, err)
}

func TestDefaultConfigFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	path, ok := DefaultConfigFile()
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(base, "authd", "config.yaml"), path)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "authd"), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: :8080\n"), 0o600))

	path, ok = DefaultConfigFile()
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(base, "authd", "config.yaml"), path)
}
