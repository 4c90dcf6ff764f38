package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// BCConfig holds the application configuration
type BCConfig struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Counter struct {
		Backend   string        `mapstructure:"backend"` // redis or memory
		Host      string        `mapstructure:"host"`
		Password  string        `mapstructure:"password"`
		DB        int           `mapstructure:"db"`
		TTL       time.Duration `mapstructure:"ttl"`
		KeyPrefix string        `mapstructure:"key_prefix"`
		SweepCron string        `mapstructure:"sweep_cron"`
	} `mapstructure:"counter"`

	Retry struct {
		Delay time.Duration `mapstructure:"delay"`
	} `mapstructure:"retry"`

	BuildLog struct {
		Enabled bool   `mapstructure:"enabled"`
		Queue   string `mapstructure:"queue"`
	} `mapstructure:"buildlog"`

	Notify struct {
		Enabled      bool   `mapstructure:"enabled"`
		TemplateCode string `mapstructure:"template_code"`
		Sender       string `mapstructure:"sender"`
		EmailDomain  string `mapstructure:"email_domain"`
		SMTP         struct {
			Host     string `mapstructure:"host"`
			Port     int    `mapstructure:"port"`
			User     string `mapstructure:"user"`
			Password string `mapstructure:"password"`
			From     string `mapstructure:"from"`
		} `mapstructure:"smtp"`
	} `mapstructure:"notify"`

	PipelineCache struct {
		Size int           `mapstructure:"size"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"pipeline_cache"`

	Janitor struct {
		SkewProbeCron string `mapstructure:"skew_probe_cron"`
	} `mapstructure:"janitor"`

	Log struct {
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"` // console or json
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
}

// LoadConfig reads the configuration from a file or environment variables
func LoadConfig(configPaths ...string) (*BCConfig, error) {
	// can specify config path from environment
	if path, exists := os.LookupEnv("BC_CONFIG_PATH"); exists {
		configPaths = append(configPaths, path)
	}
	for _, path := range configPaths {
		fi, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		mode := fi.Mode()
		switch {
		case mode.IsRegular():
			v := newViper()
			v.SetConfigFile(path)
			config, err := readConfig(v, path)
			if err != nil {
				continue
			}
			return config, nil

		case mode.IsDir():
			v := newViper()
			v.AddConfigPath(path)
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			config, err := readConfig(v, path)
			if err != nil {
				continue
			}
			return config, nil
		}
	}

	v := newViper()
	// finally read from current working directory
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	cwd, _ := os.Getwd()

	config, err := readConfig(v, cwd)
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// no config file anywhere, run purely on defaults and environment
		var fallback BCConfig
		if err := v.Unmarshal(&fallback); err != nil {
			return nil, err
		}
		return &fallback, nil
	}
	return config, nil
}

// newViper creates a viper instance with the default values and environment binding set
func newViper() *viper.Viper {
	v := viper.New()

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "buildctl")
	v.SetDefault("database.sslmode", "disable")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Retry counter defaults
	v.SetDefault("counter.backend", "redis")
	v.SetDefault("counter.host", "localhost:6379")
	v.SetDefault("counter.password", "redis")
	v.SetDefault("counter.db", 0)
	v.SetDefault("counter.ttl", "72h")
	v.SetDefault("counter.key_prefix", "process:task:failRetry:count:")
	v.SetDefault("counter.sweep_cron", "@every 1m")

	v.SetDefault("retry.delay", "5s")

	v.SetDefault("buildlog.enabled", true)
	v.SetDefault("buildlog.queue", "buildctl:buildlogs")

	// Notification defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.template_code", "PIPELINE_TASK_PAUSE_NOTIFY")
	v.SetDefault("notify.sender", "DevOps")
	v.SetDefault("notify.email_domain", "")
	v.SetDefault("notify.smtp.host", "localhost")
	v.SetDefault("notify.smtp.port", 25)
	v.SetDefault("notify.smtp.user", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "devops@localhost")

	v.SetDefault("pipeline_cache.size", 1024)
	v.SetDefault("pipeline_cache.ttl", "1m")

	v.SetDefault("janitor.skew_probe_cron", "@every 5m")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 7)

	v.SetEnvPrefix("BC")                               // Prefix for environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace dots with underscores in env vars
	v.AutomaticEnv()                                   // Read environment variables

	return v
}

func readConfig(v *viper.Viper, path string) (*BCConfig, error) {
	var config BCConfig

	if err := v.ReadInConfig(); err != nil {
		log.Warn().
			Str("path", path).
			Msg("Could not read config file")
		return nil, err
	}
	if err := v.Unmarshal(&config); err != nil {
		log.Warn().
			Str("path", path).
			Msg("Could not unmarshall config")
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns a formatted database connection string
func (c *BCConfig) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ServerAddress returns the host:port the HTTP server listens on
func (c *BCConfig) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
