package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"docconv/internal/app"
	"docconv/internal/config"
	"docconv/internal/infra/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration once and initializes logging from it.
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := loadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := ensureLogDir(cfg.Logger.File); err != nil {
			c.configErr = err
			return
		}
		logging.InitLogger(
			cfg.Logger.File,
			cfg.Logger.MaxSizeMB,
			cfg.Logger.MaxBackups,
			cfg.Logger.MaxAgeDays,
			cfg.Logger.Compress,
			cfg.Logger.Level,
		)
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp builds the service, runs fn and releases the service.
func (c *commandContext) withApp(fn func(*app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn("Shutdown incomplete", "error", err)
		}
	}()
	return fn(a)
}

// loadConfig turns the panics of config.LoadFrom into errors.
func loadConfig(path string) (cfg config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFrom(path), nil
}

func ensureLogDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return nil
}
