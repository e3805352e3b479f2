package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jfoster/retain/internal/config"
	"github.com/jfoster/retain/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "retain",
	Short:        "Spaced-repetition flashcards in the terminal",
	Long:         "Retain — terminal flashcard trainer with local-first scheduling and optional reconciliation against a remote scheduling service.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/retain/config.yaml)")
	rootCmd.PersistentFlags().String("db-path", "", "Path to SQLite database file (overrides RETAIN_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file path and merges file, environment and
// flag layers.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaultConfigPath()
	}
	return config.Load(path, cmd.Flags())
}

func defaultConfigPath() string {
	confHome := os.Getenv("XDG_CONFIG_HOME")
	if confHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		confHome = filepath.Join(home, ".config")
	}
	return filepath.Join(confHome, "retain", "config.yaml")
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// openStore opens the database at the configured path, falling back to the
// RETAIN_DB env var and then the default XDG path.
func openStore(cfg config.Config) (*store.Store, error) {
	p := cfg.DBPath
	if p == "" {
		var err error
		if p, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
	} else if err := store.EnsureDir(p); err != nil {
		return nil, fmt.Errorf("create DB dir: %w", err)
	}
	return store.Open(p)
}
