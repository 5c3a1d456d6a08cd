package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/etc/fstab", cfg.FstabPath)
	assert.Equal(t, "/etc/samba/smb.conf", cfg.SmbConfPath)
	assert.Equal(t, "/var/lib/diskmanager/history.db", cfg.HistoryDBPath)
	assert.Equal(t, []string{"/mnt/", "/media/"}, cfg.MountPrefixes)
	assert.Equal(t, 1800, cfg.FormatTimeoutS)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"fstab_path: /tmp/fstab\nformat_timeout_s: 60\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fstab", cfg.FstabPath)
	assert.Equal(t, 60, cfg.FormatTimeoutS)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset fields still get defaults.
	assert.Equal(t, "/etc/samba/smb.conf", cfg.SmbConfPath)
	assert.Equal(t, []string{"/mnt/", "/media/"}, cfg.MountPrefixes)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fstab_path: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvTimeoutOverride(t *testing.T) {
	t.Setenv("DISKMANAGER_FORMAT_TIMEOUT_S", "120")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.FormatTimeoutS)

	t.Setenv("DISKMANAGER_FORMAT_TIMEOUT_S", "not a number")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1800, cfg.FormatTimeoutS)
}

func TestResolveOperator(t *testing.T) {
	t.Setenv("SUDO_UID", "1042")
	t.Setenv("SUDO_USER", "alice")
	t.Setenv("USER", "root")

	op := ResolveOperator()
	assert.Equal(t, 1042, op.UID)
	assert.Equal(t, 1, op.GID)
	assert.Equal(t, "alice", op.Username)
}

func TestResolveOperatorWithoutSudo(t *testing.T) {
	t.Setenv("SUDO_UID", "")
	t.Setenv("SUDO_USER", "")
	t.Setenv("USER", "bob")

	op := ResolveOperator()
	assert.Equal(t, 1000, op.UID)
	assert.Equal(t, "bob", op.Username)
}

func TestResolveOperatorBadUID(t *testing.T) {
	t.Setenv("SUDO_UID", "nope")
	t.Setenv("SUDO_USER", "")
	t.Setenv("USER", "")

	op := ResolveOperator()
	assert.Equal(t, 1000, op.UID)
	assert.Equal(t, "root", op.Username)
}
