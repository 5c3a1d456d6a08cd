package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mlara/diskmanager/internal/config"
	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/history"
	"github.com/mlara/diskmanager/internal/manager"
	"github.com/mlara/diskmanager/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "diskmanager",
	Short: "Home-server storage manager",
	Long: `diskmanager discovers block devices, decides which ones are safe to
expose, and performs mount, format, boot-persistence and Samba-share
operations without ever touching the system disk.`,
	Version: version.Version,
}

// newManager loads config and wires the operation layer. The history db is
// optional: opening it can fail without privileges, and read-only commands
// should still work.
func newManager() (*manager.Manager, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := newLogger(cfg.LogLevel)
	op := config.ResolveOperator()

	var hist *history.DB
	if db, err := history.Open(cfg.HistoryDBPath); err == nil {
		hist = db
	} else {
		log.Debug("history db unavailable", zap.Error(err))
	}

	return manager.New(cfg, op, execx.System{}, hist, log), cfg, nil
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}

// printResult renders an operation outcome and exits non-zero on failure.
func printResult(res manager.Result) {
	out := os.Stdout
	if !res.OK {
		out = os.Stderr
	}
	fmt.Fprintln(out, res.Message)
	if res.Details != "" {
		fmt.Fprintln(out, res.Details)
	}
	if !res.OK {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/diskmanager/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
