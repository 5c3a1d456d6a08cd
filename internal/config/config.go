package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	FstabPath      string   `yaml:"fstab_path,omitempty"`
	SmbConfPath    string   `yaml:"smb_conf_path,omitempty"`
	HistoryDBPath  string   `yaml:"history_db,omitempty"`
	MountPrefixes  []string `yaml:"mount_prefixes,omitempty"`
	FormatTimeoutS int      `yaml:"format_timeout_s,omitempty"`
	LogLevel       string   `yaml:"log_level,omitempty"`
}

var defaultConfig = Config{
	FstabPath:      "/etc/fstab",
	SmbConfPath:    "/etc/samba/smb.conf",
	HistoryDBPath:  "/var/lib/diskmanager/history.db",
	MountPrefixes:  []string{"/mnt/", "/media/"},
	FormatTimeoutS: 1800,
	LogLevel:       "info",
}

func Load(path string) (*Config, error) {
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/diskmanager/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/diskmanager/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	var cfg Config
	if path == "" {
		cfg = defaultConfig
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			cfg = defaultConfig
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Apply defaults for missing fields
	if cfg.FstabPath == "" {
		cfg.FstabPath = defaultConfig.FstabPath
	}
	if cfg.SmbConfPath == "" {
		cfg.SmbConfPath = defaultConfig.SmbConfPath
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = defaultConfig.HistoryDBPath
	}
	if len(cfg.MountPrefixes) == 0 {
		cfg.MountPrefixes = append([]string(nil), defaultConfig.MountPrefixes...)
	}
	if cfg.FormatTimeoutS <= 0 {
		cfg.FormatTimeoutS = defaultConfig.FormatTimeoutS
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultConfig.LogLevel
	}

	// Env override kept for compatibility with the systemd unit.
	if v := os.Getenv("DISKMANAGER_FORMAT_TIMEOUT_S"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.FormatTimeoutS = n
		}
	}

	return &cfg, nil
}
