// Package config loads the client configuration from configs/config.yml,
// environment variables (DOMO_*) and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultConfigDir  = "configs"
	defaultConfigName = "config"
	envPrefix         = "DOMO"
)

// Config is the typed view of the configuration file.
type Config struct {
	Port      string              `mapstructure:"port"`
	LogLevel  string              `mapstructure:"log_level"`
	DB        DBConfig            `mapstructure:"db"`
	Control   ControlConfig       `mapstructure:"control"`
	Sensors   SensorsConfig       `mapstructure:"sensors"`
	Graph     GraphConfig         `mapstructure:"graph"`
	Dashboard DashboardConfig     `mapstructure:"dashboard"`
	Actuators []ActuatorAttribute `mapstructure:"actuators"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ControlConfig describes the single control endpoint.
type ControlConfig struct {
	URL              string        `mapstructure:"url"`
	Credential       string        `mapstructure:"credential"`
	CredentialField  string        `mapstructure:"credential_field"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type SensorsConfig struct {
	Priority []string          `mapstructure:"priority"`
	Units    map[string]string `mapstructure:"units"`
}

type GraphConfig struct {
	Width            float64 `mapstructure:"width"`
	Height           float64 `mapstructure:"height"`
	DevicePixelRatio float64 `mapstructure:"device_pixel_ratio"`
}

// ActuatorAttribute is one row of the actuator descriptor table. It is a
// list rather than a map because viper lower-cases map keys and attribute
// names are case sensitive on the wire.
type ActuatorAttribute struct {
	Actuator  string `mapstructure:"actuator"`
	Attribute string `mapstructure:"attribute"`
	Transform string `mapstructure:"transform"`
}

// DashboardConfig enables sign-in for the mutating dashboard routes. With
// an empty PasswordHash the dashboard is open.
type DashboardConfig struct {
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt
	SigningKey   string        `mapstructure:"signing_key"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

var errMissingURL = errors.New("control.url is required")

// New returns a viper instance with defaults and env binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db.path", "domo.db")
	v.SetDefault("control.url", "")
	v.SetDefault("control.credential", "")
	v.SetDefault("dashboard.password_hash", "")
	v.SetDefault("dashboard.signing_key", "")
	v.SetDefault("dashboard.token_ttl", 12*time.Hour)
	v.SetDefault("control.credential_field", "credential")
	v.SetDefault("control.handshake_timeout", 10*time.Second)
	v.SetDefault("sensors.priority", []string{"temperature", "humidity"})
	v.SetDefault("sensors.units", map[string]string{
		"temperature": "°C",
		"humidity":    "%",
	})
	v.SetDefault("graph.width", 600.0)
	v.SetDefault("graph.height", 200.0)
	v.SetDefault("graph.device_pixel_ratio", 1.0)
}

// Load reads the config file into v. An explicit path must exist; without
// one, configs/config.yml is optional and defaults plus env apply.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(defaultConfigDir)
		v.SetConfigName(defaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %q not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return parse(v)
}

func parse(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the client cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Control.URL) == "" {
		return errMissingURL
	}
	if !strings.HasPrefix(c.Control.URL, "ws://") && !strings.HasPrefix(c.Control.URL, "wss://") {
		return fmt.Errorf("control.url %q: scheme must be ws or wss", c.Control.URL)
	}
	if c.Graph.DevicePixelRatio <= 0 {
		return fmt.Errorf("graph.device_pixel_ratio must be positive, got %v", c.Graph.DevicePixelRatio)
	}
	for i, a := range c.Actuators {
		if a.Actuator == "" || a.Attribute == "" {
			return fmt.Errorf("actuators[%d]: actuator and attribute are required", i)
		}
	}
	if c.Dashboard.PasswordHash != "" && c.Dashboard.SigningKey == "" {
		return errors.New("dashboard.signing_key is required when dashboard.password_hash is set")
	}
	if c.Graph.Width <= 0 || c.Graph.Height <= 0 {
		return fmt.Errorf("graph size must be positive, got %vx%v", c.Graph.Width, c.Graph.Height)
	}
	return nil
}
