package config

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// Validate checks the configuration for values the pipeline cannot work with.
// It is called after defaults are applied, so empty fields here mean the user
// explicitly set something invalid.
func (c *Config) Validate() error {
	if len(c.Assets.Entries) == 0 {
		return ferrors.ValidationError("at least one asset entry point is required").Build()
	}
	for _, entry := range c.Assets.Entries {
		ext := filepath.Ext(entry)
		if ext != ".css" && ext != ".js" {
			return ferrors.ValidationError("entry points must be .css or .js bundles").
				WithContext("entry", entry).Build()
		}
		if strings.Contains(entry, "..") {
			return ferrors.ValidationError("entry points must not escape the asset directory").
				WithContext("entry", entry).Build()
		}
	}
	if c.Dev.Port <= 0 || c.Dev.Port > 65535 {
		return ferrors.ValidationError("dev port must be in 1..65535").
			WithContext("port", c.Dev.Port).Build()
	}
	if c.Dev.Debounce.QuietWindow <= 0 {
		return ferrors.ValidationError("debounce quiet window must be > 0").Build()
	}
	if c.Dev.Debounce.MaxDelay <= c.Dev.Debounce.QuietWindow {
		return ferrors.ValidationError("debounce max delay must exceed the quiet window").Build()
	}
	if c.History.Retention < 0 {
		return ferrors.ValidationError("history retention cannot be negative").Build()
	}
	if !strings.HasPrefix(c.Output.PublicBase, "/") {
		return ferrors.ValidationError("public base path must be absolute").
			WithContext("public_base", c.Output.PublicBase).Build()
	}
	if c.Notify.URL != "" && c.Notify.Subject == "" {
		return ferrors.ValidationError("notify subject is required when a NATS url is set").Build()
	}
	return nil
}
