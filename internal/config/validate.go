package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/recsync/config.toml"
		}
		return fmt.Errorf("server.url is required. Edit %s (create with 'recsync config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Server.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("server.url %q must be an absolute http(s) URL", c.Server.URL)
	}
	if strings.TrimSpace(c.Server.UserID) == "" {
		return errors.New("server.user_id must be set")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.TickInterval <= 0 {
		return errors.New("engine.tick_interval must be positive")
	}
	if c.Engine.MaxBatch <= 0 {
		return errors.New("engine.max_batch must be positive")
	}
	if c.Engine.FailureBackoff <= 0 {
		return errors.New("engine.failure_backoff must be positive")
	}
	// The session start response renegotiates these; the initial values
	// still have to be sane so the scheduler never divides by zero.
	for name, value := range map[string]int{
		"engine.update_check_period": c.Engine.UpdateCheckPeriod,
		"engine.update_period":       c.Engine.UpdatePeriod,
		"engine.keep_alive_period":   c.Engine.KeepAlivePeriod,
		"engine.session_lifetime":    c.Engine.SessionLifetime,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
