package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"doughline/internal/domain"
)

// Config models doughline.yml.
type Config struct {
	Owner    string `yaml:"owner"`
	Defaults struct {
		Style               domain.Style     `yaml:"style"`
		Method              domain.Method    `yaml:"method"`
		YeastKind           domain.YeastKind `yaml:"yeast_kind"`
		RoomTempC           float64          `yaml:"room_temp_c"`
		FridgeTempC         float64          `yaml:"fridge_temp_c"`
		ReminderLeadMinutes int              `yaml:"reminder_lead_minutes"`
		ToleranceMinutes    int              `yaml:"tolerance_minutes"`
	} `yaml:"defaults"`
	Server struct {
		Addr                   string `yaml:"addr"`
		BasePath               string `yaml:"base_path"`
		JWTSecretEnv           string `yaml:"jwt_secret_env"`
		AllowLegacyOwnerHeader bool   `yaml:"allow_legacy_owner_header"`
	} `yaml:"server"`
	Notifier NotifierConfig `yaml:"notifier"`
	Logging  struct {
		Debug      bool `yaml:"debug"`
		MaxSizeMB  int  `yaml:"max_size_mb"`
		MaxBackups int  `yaml:"max_backups"`
	} `yaml:"logging"`
}

type NotifierConfig struct {
	Kind           string `yaml:"kind"`
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PollSeconds    int    `yaml:"poll_seconds"`
	Batch          int    `yaml:"batch"`
}

// Tolerance is the on-time window for completed steps.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.Defaults.ToleranceMinutes) * time.Minute
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with doughctl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("config.owner is required")
	}
	if _, ok := domain.LookupStyle(c.Defaults.Style); !ok {
		return fmt.Errorf("config.defaults.style %q is not a known style", c.Defaults.Style)
	}
	switch c.Defaults.Method {
	case domain.MethodRoomTemperature, domain.MethodCold, domain.MethodMixed, domain.MethodSameDay:
	default:
		return fmt.Errorf("config.defaults.method %q is not supported", c.Defaults.Method)
	}
	switch c.Defaults.YeastKind {
	case domain.YeastFresh, domain.YeastInstantDry, domain.YeastActiveDry, domain.YeastSourdough:
	default:
		return fmt.Errorf("config.defaults.yeast_kind %q is not supported", c.Defaults.YeastKind)
	}
	if c.Defaults.RoomTempC < 10 || c.Defaults.RoomTempC > 40 {
		return fmt.Errorf("config.defaults.room_temp_c must be between 10 and 40")
	}
	if c.Defaults.FridgeTempC < 0 || c.Defaults.FridgeTempC > 10 {
		return fmt.Errorf("config.defaults.fridge_temp_c must be between 0 and 10")
	}
	if c.Defaults.ReminderLeadMinutes < 0 || c.Defaults.ReminderLeadMinutes > 1440 {
		return fmt.Errorf("config.defaults.reminder_lead_minutes must be between 0 and 1440")
	}
	if c.Defaults.ToleranceMinutes < 0 || c.Defaults.ToleranceMinutes > 120 {
		return fmt.Errorf("config.defaults.tolerance_minutes must be between 0 and 120")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath == "" || c.Server.BasePath[0] != '/' {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Notifier.Kind {
	case "log":
	case "webhook":
		if c.Notifier.WebhookURL == "" {
			return fmt.Errorf("config.notifier.webhook_url is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("config.notifier.kind must be 'log' or 'webhook'")
	}
	if c.Notifier.TimeoutSeconds <= 0 || c.Notifier.PollSeconds <= 0 || c.Notifier.Batch <= 0 {
		return fmt.Errorf("config.notifier timeout_seconds, poll_seconds and batch must be positive")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "doughline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(owner string) string {
	return fmt.Sprintf(defaultTemplate, owner)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for an owner.
func Default(owner string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(owner))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("local-user")
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

const defaultTemplate = `owner: %s

defaults:
  style: neapolitan
  method: room-temperature
  yeast_kind: fresh
  room_temp_c: 22
  fridge_temp_c: 4
  reminder_lead_minutes: 15
  tolerance_minutes: 5

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret_env: DOUGHLINE_JWT_SECRET
  allow_legacy_owner_header: false

notifier:
  kind: log
  webhook_url: ""
  timeout_seconds: 5
  poll_seconds: 30
  batch: 50

logging:
  debug: false
  max_size_mb: 10
  max_backups: 3
`
