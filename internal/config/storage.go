package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/docker/go-units"
)

// Document store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// File storage backends.
const (
	StorageDatabase   = "database"
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
)

// DatabaseConfig selects and addresses the document store.
type DatabaseConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

func (c *DatabaseConfig) Finalize() error {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Path == "" {
		c.Path = "snapgram.db"
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Driver = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_MAX_CONNS: %w", err)
		}
		c.MaxConns = int32(n)
	}

	switch c.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown driver %q (must be sqlite or postgres)", c.Driver)
	}
	return nil
}

func (c *DatabaseConfig) Merge(overlay *DatabaseConfig) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.MaxConns != 0 {
		c.MaxConns = overlay.MaxConns
	}
}

// StorageConfig selects where uploaded file bytes live.
type StorageConfig struct {
	Backend       string `toml:"backend"`
	Bucket        string `toml:"bucket"`
	Path          string `toml:"path"`
	S3Endpoint    string `toml:"s3_endpoint"`
	S3Region      string `toml:"s3_region"`
	MaxUploadSize string `toml:"max_upload_size"`

	maxUploadSize int64
}

// MaxUploadSizeBytes returns the parsed upload limit.
func (c *StorageConfig) MaxUploadSizeBytes() int64 { return c.maxUploadSize }

func (c *StorageConfig) Finalize() error {
	if c.Backend == "" {
		c.Backend = StorageDatabase
	}
	if c.Path == "" {
		c.Path = ".data/files"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.S3Endpoint = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.S3Region = v
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}

	switch c.Backend {
	case StorageDatabase, StorageFilesystem:
	case StorageS3:
		if c.Bucket == "" {
			return errors.New("STORAGE_BUCKET is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (must be database, filesystem or s3)", c.Backend)
	}

	size, err := units.FromHumanSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return errors.New("max_upload_size must be positive")
	}
	c.maxUploadSize = size
	return nil
}

func (c *StorageConfig) Merge(overlay *StorageConfig) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.Bucket != "" {
		c.Bucket = overlay.Bucket
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.S3Endpoint != "" {
		c.S3Endpoint = overlay.S3Endpoint
	}
	if overlay.S3Region != "" {
		c.S3Region = overlay.S3Region
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
}
