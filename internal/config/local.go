package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName      = ".posbridge"
	configFileName     = "config.yaml"
	connectionFileName = "connection.json"
	defaultUserID      = "local"
)

// LocalConfig holds configuration loaded from a local file.
type LocalConfig struct {
	Lightspeed localLightspeedConfig
	UserID     string
}

// localConfig represents the local configuration file structure.
type localConfig struct {
	Lightspeed localLightspeed `yaml:"lightspeed"`
	UserID     string          `yaml:"user_id"`
}

// localLightspeed represents the lightspeed section of the config file.
type localLightspeed struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// localLightspeedConfig holds Lightspeed credentials from the config file.
type localLightspeedConfig struct {
	ClientID     string
	ClientSecret string
}

// ConfigDir returns the posbridge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFilePath returns the path to the local config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ConnectionFilePath returns the path to the local connection file.
func ConnectionFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, connectionFileName), nil
}

// LoadLocal loads configuration from the local config file.
func LoadLocal() (*LocalConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run 'posbridge init' to create)", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var local localConfig
	if err := yaml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &LocalConfig{}
	cfg.Lightspeed.ClientID = local.Lightspeed.ClientID
	cfg.Lightspeed.ClientSecret = local.Lightspeed.ClientSecret
	cfg.UserID = local.UserID

	if cfg.UserID == "" {
		cfg.UserID = defaultUserID
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LocalConfigExists checks if a local config file exists.
func LocalConfigExists() bool {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// validate checks that required fields are set.
func (c *LocalConfig) validate() error {
	var errs []error

	if c.Lightspeed.ClientID == "" {
		errs = append(errs, errors.New("lightspeed.client_id is required"))
	}
	if c.Lightspeed.ClientSecret == "" {
		errs = append(errs, errors.New("lightspeed.client_secret is required"))
	}

	return errors.Join(errs...)
}
