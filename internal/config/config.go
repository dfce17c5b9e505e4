// Package config loads process configuration from an optional TOML file, an
// optional .env file and the environment, in that order of precedence from
// lowest to highest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/msomdec/snapgram/internal/logging"
)

const (
	EnvConfigFile = "CONFIG_FILE"
	EnvDotenvFile = "DOTENV_FILE"

	DefaultConfigFile = "snapgram.toml"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Cache    CacheConfig    `toml:"cache"`
	CORS     CORSConfig     `toml:"cors"`
	Logging  logging.Config `toml:"logging"`
}

// Load reads .env (when present) into the environment, decodes the TOML file
// named by CONFIG_FILE (or snapgram.toml when present), then finalizes.
func Load() (*Config, error) {
	dotenv := os.Getenv(EnvDotenvFile)
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", dotenv, err)
	}

	cfg := &Config{}
	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	fileCfg, err := LoadFile(path)
	switch {
	case err == nil:
		cfg.Merge(fileCfg)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a TOML configuration file without finalizing it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates every section.
func (c *Config) Finalize() error {
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Auth.Finalize(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Database.Finalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Cache.Finalize(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.CORS.Finalize(); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:" + c.Server.Port
	}
	return nil
}

// Merge applies non-zero values from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Server.Merge(&overlay.Server)
	c.Auth.Merge(&overlay.Auth)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Cache.Merge(&overlay.Cache)
	c.CORS.Merge(&overlay.CORS)
	c.Logging.Merge(&overlay.Logging)
}

// ServerConfig holds the HTTP listener and public addressing settings.
type ServerConfig struct {
	Port      string `toml:"port"`
	PublicURL string `toml:"public_url"`
	ProjectID string `toml:"project_id"`
	// CookieSecure is a pointer so an explicit false in TOML survives defaults.
	CookieSecure    *bool  `toml:"cookie_secure"`
	ShutdownTimeout string `toml:"shutdown_timeout"`

	shutdownTimeout time.Duration
}

func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return c.shutdownTimeout }

// SecureCookies reports whether auth cookies carry the Secure flag.
func (c *ServerConfig) SecureCookies() bool { return c.CookieSecure == nil || *c.CookieSecure }

func (c *ServerConfig) Finalize() error {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.ProjectID == "" {
		c.ProjectID = "snapgram"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "10s"
	}

	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		c.PublicURL = v
	}
	if v := os.Getenv("PROJECT_ID"); v != "" {
		c.ProjectID = v
	}
	// Default to secure cookies; disable only for local development.
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		secure := v != "false"
		c.CookieSecure = &secure
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	c.shutdownTimeout = d
	return nil
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != "" {
		c.Port = overlay.Port
	}
	if overlay.PublicURL != "" {
		c.PublicURL = overlay.PublicURL
	}
	if overlay.ProjectID != "" {
		c.ProjectID = overlay.ProjectID
	}
	if overlay.CookieSecure != nil {
		c.CookieSecure = overlay.CookieSecure
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
}

// AuthConfig holds password hashing and session token settings.
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret"`
	BcryptCost int    `toml:"bcrypt_cost"`
	SessionTTL string `toml:"session_ttl"`

	sessionTTL time.Duration
}

func (c *AuthConfig) SessionTTLDuration() time.Duration { return c.sessionTTL }

func (c *AuthConfig) Finalize() error {
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "24h"
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		c.BcryptCost = parsed
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		c.SessionTTL = v
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost must be between 4 and 14, got %d", c.BcryptCost)
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return fmt.Errorf("invalid session_ttl: %w", err)
	}
	if d <= 0 {
		return errors.New("session_ttl must be positive")
	}
	c.sessionTTL = d
	return nil
}

func (c *AuthConfig) Merge(overlay *AuthConfig) {
	if overlay.JWTSecret != "" {
		c.JWTSecret = overlay.JWTSecret
	}
	if overlay.BcryptCost != 0 {
		c.BcryptCost = overlay.BcryptCost
	}
	if overlay.SessionTTL != "" {
		c.SessionTTL = overlay.SessionTTL
	}
}

// CacheConfig holds the query cache timings.
type CacheConfig struct {
	StaleTime string `toml:"stale_time"`
	GCTime    string `toml:"gc_time"`

	staleTime time.Duration
	gcTime    time.Duration
}

func (c *CacheConfig) StaleTimeDuration() time.Duration { return c.staleTime }
func (c *CacheConfig) GCTimeDuration() time.Duration    { return c.gcTime }

func (c *CacheConfig) Finalize() error {
	if c.StaleTime == "" {
		c.StaleTime = "5m"
	}
	if c.GCTime == "" {
		c.GCTime = "10m"
	}
	if v := os.Getenv("CACHE_STALE_TIME"); v != "" {
		c.StaleTime = v
	}
	if v := os.Getenv("CACHE_GC_TIME"); v != "" {
		c.GCTime = v
	}

	var err error
	if c.staleTime, err = time.ParseDuration(c.StaleTime); err != nil {
		return fmt.Errorf("invalid stale_time: %w", err)
	}
	if c.gcTime, err = time.ParseDuration(c.GCTime); err != nil {
		return fmt.Errorf("invalid gc_time: %w", err)
	}
	if c.staleTime < 0 || c.gcTime <= 0 {
		return errors.New("stale_time must not be negative and gc_time must be positive")
	}
	return nil
}

func (c *CacheConfig) Merge(overlay *CacheConfig) {
	if overlay.StaleTime != "" {
		c.StaleTime = overlay.StaleTime
	}
	if overlay.GCTime != "" {
		c.GCTime = overlay.GCTime
	}
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

func (c *CORSConfig) Finalize() error {
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	}
	return nil
}

func (c *CORSConfig) Merge(overlay *CORSConfig) {
	if overlay.AllowedOrigins != nil {
		c.AllowedOrigins = overlay.AllowedOrigins
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
