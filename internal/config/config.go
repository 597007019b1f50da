package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// Config represents the application configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Assets  AssetsConfig  `yaml:"assets"`
	Output  OutputConfig  `yaml:"output"`
	Dev     DevConfig     `yaml:"dev"`
	History HistoryConfig `yaml:"history"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// SiteConfig carries site-wide metadata handed to the page generator.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// ContentConfig describes the content watch domain.
type ContentConfig struct {
	Dir string `yaml:"dir"`
}

// AssetsConfig describes the asset watch domain.
type AssetsConfig struct {
	Dir string `yaml:"dir"`
	// Entries are logical bundle names, resolved as source files under Dir.
	Entries []string `yaml:"entries"`
	// UtilitySheet is an optional utility-class source stylesheet expanded
	// into entry bundles by the transform step.
	UtilitySheet string `yaml:"utility_sheet,omitempty"`
}

// OutputConfig describes where builds land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// PublicBase is the URL prefix pages use to reference fingerprinted assets.
	PublicBase string `yaml:"public_base"`
	Clean      bool   `yaml:"clean"`
}

// DevConfig controls the dev daemon.
type DevConfig struct {
	Port     int            `yaml:"port"`
	Debounce DebounceConfig `yaml:"debounce"`
	// SweepInterval schedules periodic full rebuilds; zero disables the sweep.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`
}

// DebounceConfig tunes event coalescing per watch domain.
type DebounceConfig struct {
	QuietWindow time.Duration `yaml:"quiet_window"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// HistoryConfig controls the build-history store. An empty path keeps the
// history in memory for the lifetime of the dev session.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
	// Retention drops records older than this on daemon startup. Zero keeps
	// everything.
	Retention time.Duration `yaml:"retention,omitempty"`
}

// NotifyConfig configures the optional NATS build-event publisher.
// An empty URL disables it.
type NotifyConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// ManifestPath returns the well-known manifest location under the output dir.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Output.Dir, "manifest.json")
}

// AssetOutputDir returns the directory fingerprinted bundles are written to.
func (c *Config) AssetOutputDir() string {
	return filepath.Join(c.Output.Dir, "assets")
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", configPath).Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").Build()
	}

	// Expand environment variables in the YAML content before unmarshal.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "unmarshal config").Build()
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable for a
// minimal site with no config file at all.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Untitled Site"
	}
	if c.Content.Dir == "" {
		c.Content.Dir = "content"
	}
	if c.Assets.Dir == "" {
		c.Assets.Dir = "assets"
	}
	if len(c.Assets.Entries) == 0 {
		c.Assets.Entries = []string{"main.css", "main.js"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "public"
	}
	if c.Output.PublicBase == "" {
		c.Output.PublicBase = "/assets/"
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = 3300
	}
	if c.Dev.Debounce.QuietWindow == 0 {
		c.Dev.Debounce.QuietWindow = 200 * time.Millisecond
	}
	if c.Dev.Debounce.MaxDelay == 0 {
		c.Dev.Debounce.MaxDelay = 2 * time.Second
	}
	if c.Notify.URL != "" && c.Notify.Subject == "" {
		c.Notify.Subject = "themekit.builds"
	}
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(
			fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "write example config").Build()
	}
	return nil
}

const exampleConfig = `# themekit configuration
site:
  title: My Site
  base_url: https://example.org

content:
  dir: content

assets:
  dir: assets
  entries:
    - main.css
    - main.js
  # utility_sheet: assets/utilities.css

output:
  dir: public
  public_base: /assets/
  clean: true

dev:
  port: 3300
  debounce:
    quiet_window: 200ms
    max_delay: 2s
  # sweep_interval: 10m

# history:
#   path: .themekit/history.db
#   retention: 168h

# notify:
#   url: nats://localhost:4222
#   subject: themekit.builds
`
