// Package config loads nmap-hosts settings from defaults, an optional YAML
// file and NMAPHOSTS_* environment variables.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "NMAPHOSTS"

// Config is the effective configuration.
type Config struct {
	DBPath     string       `mapstructure:"db_path" yaml:"db_path"`
	ListenPort int          `mapstructure:"listen_port" yaml:"listen_port"`
	LogLevel   string       `mapstructure:"log_level" yaml:"log_level"`
	Decode     DecodeConfig `mapstructure:"decode" yaml:"decode"`
	Nmap       NmapConfig   `mapstructure:"nmap" yaml:"nmap"`
	Scope      ScopeConfig  `mapstructure:"scope" yaml:"scope"`
}

// DecodeConfig controls document decoding.
type DecodeConfig struct {
	Workers          int  `mapstructure:"workers" yaml:"workers"`
	SkipInvalidHosts bool `mapstructure:"skip_invalid_hosts" yaml:"skip_invalid_hosts"`
}

// NmapConfig controls scans started by the scan command.
type NmapConfig struct {
	Binary           string        `mapstructure:"binary" yaml:"binary"`
	Ports            string        `mapstructure:"ports" yaml:"ports"`
	ServiceDetection bool          `mapstructure:"service_detection" yaml:"service_detection"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ScopeConfig lists include/exclude definitions (IP, CIDR or range).
type ScopeConfig struct {
	Include []string `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "nmap-hosts.db")
	v.SetDefault("listen_port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("decode.workers", 4)
	v.SetDefault("decode.skip_invalid_hosts", false)
	v.SetDefault("nmap.binary", "")
	v.SetDefault("nmap.ports", "")
	v.SetDefault("nmap.service_detection", true)
	v.SetDefault("nmap.timeout", "10m")
	v.SetDefault("scope.include", []string{})
	v.SetDefault("scope.exclude", []string{})
}

// Load builds a Config. An empty path skips the config file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no command can work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	if c.Decode.Workers < 0 {
		return fmt.Errorf("decode.workers must not be negative")
	}
	if c.Nmap.Timeout < 0 {
		return fmt.Errorf("nmap.timeout must not be negative")
	}
	return nil
}

// WriteYAML writes the configuration in the same shape Load reads.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
