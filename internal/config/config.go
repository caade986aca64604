package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0xPuncker/andon-notifier/pkg/types"
	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	Environment   string             `json:"environment"`
	Server        ServerConfig       `json:"server"`
	Database      DatabaseConfig     `json:"database"`
	Scheduler     SchedulerConfig    `json:"scheduler"`
	SMTP          SMTPConfig         `json:"smtp"`
	Notifications NotificationConfig `json:"notifications"`
	Jobs          types.JobConfig    `json:"jobs"`
}

type ServerConfig struct {
	Port         string `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type DatabaseConfig struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

type SchedulerConfig struct {
	Interval    string `json:"interval"`
	Timezone    string `json:"timezone"`
	Lease       string `json:"lease"`
	SendTimeout string `json:"send_timeout"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type NotificationConfig struct {
	SendDelay       string `json:"send_delay"`
	DepartmentsFile string `json:"departments_file"`
	DashboardURL    string `json:"dashboard_url"`
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if err := godotenv.Load(); err != nil {
			if err := godotenv.Load(".env.local"); err != nil {
				fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
			}
		}

		cfg := fromEnv()
		applyEnvOverrides(cfg)
		cfg.setDefaults()
		return cfg, nil
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)
	config.setDefaults()
	return config, nil
}

func fromEnv() *Config {
	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DATABASE_DRIVER", "postgres"),
			DSN:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
		},
		Scheduler: SchedulerConfig{
			Interval:    getEnv("SCHEDULER_INTERVAL", "1m"),
			Timezone:    getEnv("SCHEDULER_TIMEZONE", "Local"),
			Lease:       getEnv("SCHEDULER_LEASE", "0s"),
			SendTimeout: getEnv("SCHEDULER_SEND_TIMEOUT", "0s"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 25),
			Username: getEnv("SMTP_USERNAME", ""),
			From:     getEnv("SMTP_FROM", "andon@localhost"),
		},
		Notifications: NotificationConfig{
			SendDelay:       getEnv("NOTIFICATION_SEND_DELAY", "2s"),
			DepartmentsFile: getEnv("DEPARTMENTS_FILE", "config/departments.yaml"),
			DashboardURL:    getEnv("DASHBOARD_URL", ""),
		},
	}
}

// applyEnvOverrides lets secrets and the deployment flag come from the environment
// even when a config file is present.
func applyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("APP_ENV"); ok {
		c.Environment = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		c.Database.DSN = v
	}
	if v, ok := os.LookupEnv("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
}

func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 10,
		},
		Scheduler: SchedulerConfig{
			Interval: "1m",
			Timezone: "Local",
		},
		SMTP: SMTPConfig{
			Host: "localhost",
			Port: 25,
			From: "andon@localhost",
		},
		Notifications: NotificationConfig{
			SendDelay:       "2s",
			DepartmentsFile: "config/departments.yaml",
		},
	}
}

func (c *Config) setDefaults() {
	if len(c.Jobs.Predefined) == 0 {
		c.Jobs.Predefined = types.DefaultJobs()
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if _, err := c.Scheduler.IntervalDuration(); err != nil {
		return err
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	if _, err := c.Scheduler.LeaseDuration(); err != nil {
		return err
	}
	if _, err := c.Scheduler.SendTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Notifications.SendDelayDuration(); err != nil {
		return err
	}
	for _, job := range c.Jobs.Predefined {
		if job.Name == "" {
			return fmt.Errorf("job with task %q has no name", job.TaskName)
		}
		if job.FireHour < 0 || job.FireHour > 23 {
			return fmt.Errorf("job %s: fire hour %d out of range", job.Name, job.FireHour)
		}
	}
	return nil
}

func (s SchedulerConfig) IntervalDuration() (time.Duration, error) {
	d, err := parseDuration("scheduler interval", s.Interval, time.Minute)
	if err != nil {
		return 0, err
	}
	if d < time.Second {
		return 0, fmt.Errorf("scheduler interval must be at least 1s, got %s", d)
	}
	return d, nil
}

func (s SchedulerConfig) LeaseDuration() (time.Duration, error) {
	return parseDuration("scheduler lease", s.Lease, 0)
}

func (s SchedulerConfig) SendTimeoutDuration() (time.Duration, error) {
	return parseDuration("scheduler send timeout", s.SendTimeout, 0)
}

func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func (n NotificationConfig) SendDelayDuration() (time.Duration, error) {
	return parseDuration("notification send delay", n.SendDelay, 0)
}

func parseDuration(what, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", what)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
