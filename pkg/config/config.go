package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Department struct {
	Name              string   `yaml:"name"`
	DisplayName       string   `yaml:"display_name"`
	Recipients        []string `yaml:"recipients"`
	TargetStopMinutes float64  `yaml:"target_stop_minutes"`
}

type Config struct {
	Departments []Department `yaml:"departments"`
}

func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/departments.yaml"
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	seen := make(map[string]bool, len(config.Departments))
	for i := range config.Departments {
		d := &config.Departments[i]
		d.Name = strings.ToLower(strings.TrimSpace(d.Name))
		if d.Name == "" {
			return nil, fmt.Errorf("department %d has no name", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("department %s listed twice", d.Name)
		}
		seen[d.Name] = true
	}

	return &config, nil
}

func (c *Config) GetDepartmentNames() []string {
	names := make([]string, len(c.Departments))
	for i, d := range c.Departments {
		names[i] = d.Name
	}
	return names
}

func (c *Config) GetDepartmentByName(name string) *Department {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range c.Departments {
		if c.Departments[i].Name == name {
			return &c.Departments[i]
		}
	}
	return nil
}
