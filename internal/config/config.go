// Package config loads settings from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
	CacheDriverNone   = "none"
)

type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
	Server   ServerConfig
	Mail     MailConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Pass     string
	Name     string
	MaxRetry int
}

// DSN is the go-sql-driver/mysql data source name. Times are read and written in UTC.
func (d DatabaseConfig) DSN() string {
	c := mysql.NewConfig()
	c.User = d.User
	c.Passwd = d.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(d.Host, d.Port)
	c.DBName = d.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

type CacheConfig struct {
	Driver string
	Host   string
	Port   string
	Pass   string
	DB     int
	TTL    time.Duration
	// BloomBits sizes the redis comment id filter
	BloomBits uint64
}

type ServerConfig struct {
	Address string
	// Timeout bounds each request
	Timeout    time.Duration
	AppOrigin  string
	AuthHeader string
}

type MailConfig struct {
	// URL is a shoutrrr service url; empty disables mail
	URL       string
	SiteURL   string
	QueueSize int
	Timeout   time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// envKeys maps config keys to the environment variables they are read from
var envKeys = map[string]string{
	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.pass":     "DATABASE_PASS",
	"database.name":     "DATABASE_NAME",
	"database.maxretry": "DATABASE_MAX_RETRY",
	"cache.driver":      "CACHE_DRIVER",
	"cache.host":        "CACHE_HOST",
	"cache.port":        "CACHE_PORT",
	"cache.pass":        "CACHE_PASS",
	"cache.db":          "CACHE_DB",
	"cache.ttl":         "CACHE_TTL",
	"cache.bloombits":   "BLOOM_FILTER_SIZE",
	"server.address":    "SERVER_ADDRESS",
	"server.timeout":    "CONTEXT_TIMEOUT",
	"server.apporigin":  "APP_ORIGIN",
	"server.authheader": "AUTH_HEADER",
	"mail.url":          "MAIL_URL",
	"mail.siteurl":      "SITE_URL",
	"mail.queuesize":    "MAIL_QUEUE_SIZE",
	"mail.timeout":      "MAIL_TIMEOUT",
	"log.level":         "LOG_LEVEL",
	"log.format":        "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.maxretry", 10)
	v.SetDefault("cache.driver", CacheDriverRedis)
	v.SetDefault("cache.host", "127.0.0.1")
	v.SetDefault("cache.port", "6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.bloombits", 1<<24)
	v.SetDefault("server.address", ":9090")
	v.SetDefault("server.timeout", 30)
	v.SetDefault("server.apporigin", "*")
	v.SetDefault("server.authheader", "X-Auth-User")
	v.SetDefault("mail.queuesize", 256)
	v.SetDefault("mail.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads envFile (when it exists) into the environment and builds the Config.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			logrus.Debugf("no env file at %s, using the environment only", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Pass:     v.GetString("database.pass"),
			Name:     v.GetString("database.name"),
			MaxRetry: v.GetInt("database.maxretry"),
		},
		Cache: CacheConfig{
			Driver: strings.ToLower(v.GetString("cache.driver")),
			Host:   v.GetString("cache.host"),
			Port:   v.GetString("cache.port"),
			Pass:   v.GetString("cache.pass"),
			DB:     v.GetInt("cache.db"),
			TTL:    v.GetDuration("cache.ttl"),

			BloomBits: v.GetUint64("cache.bloombits"),
		},
		Server: ServerConfig{
			Address:    v.GetString("server.address"),
			Timeout:    time.Duration(v.GetInt("server.timeout")) * time.Second,
			AppOrigin:  v.GetString("server.apporigin"),
			AuthHeader: v.GetString("server.authheader"),
		},
		Mail: MailConfig{
			URL:       v.GetString("mail.url"),
			SiteURL:   v.GetString("mail.siteurl"),
			QueueSize: v.GetInt("mail.queuesize"),
			Timeout:   v.GetDuration("mail.timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverMemory, CacheDriverNone:
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}
	if c.Server.Timeout <= 0 {
		return errors.New("CONTEXT_TIMEOUT must be positive")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if strings.TrimSpace(c.Server.AuthHeader) == "" {
		return errors.New("AUTH_HEADER must not be empty")
	}
	return nil
}

// SetupLogging applies the log level and format to the logrus standard logger
func SetupLogging(cfg LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", cfg.Format)
	}
	return nil
}
