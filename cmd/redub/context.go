package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/jobstore"
	"redub/internal/logging"
)

// commandContext lazily loads state shared by subcommands. The config is
// read once per process, after flags are parsed.
type commandContext struct {
	configFlag *string

	ensureConfig func() (*config.Config, error)
	ensureLogger func() (*slog.Logger, error)
}

func newCommandContext(configFlag *string) *commandContext {
	c := &commandContext{configFlag: configFlag}
	c.ensureConfig = sync.OnceValues(c.loadConfig)
	c.ensureLogger = sync.OnceValues(func() (*slog.Logger, error) {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		return logging.NewFromConfig(cfg)
	})
	return c
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the job history database. Callers close it.
func (c *commandContext) openStore() (*jobstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return jobstore.Open(cfg.JobStorePath())
}

// loadDotEnv reads ./.env without overriding variables already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("ignoring unreadable .env", "error", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
