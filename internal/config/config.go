package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/widload/pkg/widload"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ProjectConfig is the optional widload.yaml found in the input directory.
// Zero values mean "not set"; flags and built-in defaults fill them in.
type ProjectConfig struct {
	Connection     ConnectionConfig    `yaml:"connection"`
	Tables         widload.TableNames  `yaml:"tables"`
	Files          widload.SourceFiles `yaml:"files"`
	Workers        int                 `yaml:"workers"`
	MetadataSample int                 `yaml:"metadata_sample"`
	Timeout        string              `yaml:"timeout"`
}

const ConfigFileName = "widload.yaml"

func Load(sourcePath string) (*ProjectConfig, error) {
	configPath := filepath.Join(sourcePath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %v: %w", ConfigFileName, err, widload.ErrInvalidConfig)
	}
	return &cfg, nil
}

// LoadOptional is Load that treats a missing file as an empty config.
func LoadOptional(sourcePath string) (*ProjectConfig, error) {
	cfg, err := Load(sourcePath)
	if errors.Is(err, ErrConfigNotFound) {
		return &ProjectConfig{}, nil
	}
	return cfg, err
}

// TimeoutDuration parses Timeout. An empty value is zero.
func (c *ProjectConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %w", c.Timeout, ConfigFileName, widload.ErrInvalidConfig)
	}
	return d, nil
}
