package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxUploadBytes is the 2 GiB ceiling for a single video file.
const DefaultMaxUploadBytes int64 = 2 << 30

// Config models campaignline.yml.
type Config struct {
	Uploads struct {
		MaxBytes       int64    `yaml:"max_bytes" json:"max_bytes"`
		Extensions     []string `yaml:"extensions" json:"extensions"`
		VersionRetries int      `yaml:"version_retries" json:"version_retries"`
	} `yaml:"uploads" json:"uploads"`
	Storage struct {
		MediaDir      string `yaml:"media_dir" json:"media_dir"`
		PublicBaseURL string `yaml:"public_base_url" json:"public_base_url"`
	} `yaml:"storage" json:"storage"`
	Lifecycle struct {
		AllowCancelAfterSNS bool `yaml:"allow_cancel_after_sns" json:"allow_cancel_after_sns"`
	} `yaml:"lifecycle" json:"lifecycle"`
	Translation struct {
		Endpoint       string `yaml:"endpoint" json:"endpoint"`
		SourceLanguage string `yaml:"source_language" json:"source_language"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"translation" json:"translation"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events"`
	Secret         string   `yaml:"secret" json:"-"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with cl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("config.uploads.max_bytes must be positive")
	}
	if c.Uploads.MaxBytes > DefaultMaxUploadBytes {
		return fmt.Errorf("config.uploads.max_bytes may not exceed %d", DefaultMaxUploadBytes)
	}
	if len(c.Uploads.Extensions) == 0 {
		return fmt.Errorf("config.uploads.extensions is required")
	}
	for _, ext := range c.Uploads.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("upload extension %q must start with a dot", ext)
		}
	}
	if c.Uploads.VersionRetries < 1 {
		return fmt.Errorf("config.uploads.version_retries must be at least 1")
	}
	if c.Storage.MediaDir == "" {
		return fmt.Errorf("config.storage.media_dir is required")
	}
	if c.Translation.TimeoutSeconds < 0 {
		return fmt.Errorf("config.translation.timeout_seconds must not be negative")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "campaignline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections fall back
// to defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `uploads:
  # 2 GiB
  max_bytes: 2147483648
  extensions: [.mp4, .mov, .m4v, .webm, .avi, .mkv]
  version_retries: 3

storage:
  media_dir: media
  public_base_url: /media

lifecycle:
  # Cancelling after a post went live does not reverse rewards automatically;
  # enabling this flags the cancellation for manual reward review.
  allow_cancel_after_sns: false

translation:
  endpoint: ""
  source_language: ko
  timeout_seconds: 5

webhooks: []
`
