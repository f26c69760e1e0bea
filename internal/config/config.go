package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/photosync"
	"github.com/openmined/photoframe/internal/utils"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "PHOTOFRAME"

	DefaultHTTPAddr            = "localhost:7939"
	DefaultSyncInterval        = photosync.DefaultSyncInterval
	MinSyncInterval            = photosync.MinSyncInterval
	DefaultSelfieFolder        = photosync.DefaultSelfieFolder
	DefaultMaxAttempts         = blob.DefaultMaxAttempts
	DefaultDownloadConcurrency = photosync.DefaultDownloadConcurrency
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".photoframe", "config.json")
	DefaultCacheDir    = filepath.Join(home, ".photoframe", "cache")
	DefaultLogFilePath = filepath.Join(home, ".photoframe", "logs", "photoframe.log")
)

var (
	ErrNoBucket = errors.New("bucket is required")
	ErrNoRegion = errors.New("region is required")
)

type Config struct {
	CacheDir            string        `json:"cache_dir" mapstructure:"cache_dir"`
	Bucket              string        `json:"bucket" mapstructure:"bucket"`
	Region              string        `json:"region" mapstructure:"region"`
	FunctionName        string        `json:"function_name" mapstructure:"function_name"`
	Endpoint            string        `json:"endpoint" mapstructure:"endpoint"`
	AccessKey           string        `json:"access_key" mapstructure:"access_key"`
	SecretKey           string        `json:"secret_key" mapstructure:"secret_key"`
	SyncInterval        time.Duration `json:"sync_interval" mapstructure:"sync_interval"`
	CacheLife           time.Duration `json:"cache_life" mapstructure:"cache_life"`
	SelfieFolder        string        `json:"selfie_folder" mapstructure:"selfie_folder"`
	MaxAttempts         int           `json:"max_attempts" mapstructure:"max_attempts"`
	DownloadConcurrency int           `json:"download_concurrency" mapstructure:"download_concurrency"`
	HTTPAddr            string        `json:"http_addr" mapstructure:"http_addr"`
	HTTPToken           string        `json:"http_token" mapstructure:"http_token"`
	CORSOrigins         []string      `json:"cors_origins" mapstructure:"cors_origins"`
	WatchDir            string        `json:"watch_dir" mapstructure:"watch_dir"`
	Path                string        `json:"-" mapstructure:"-"`
}

// legacyEnv maps config keys to the plain AWS style variables older
// deployments export.
var legacyEnv = map[string]string{
	"bucket":        "BUCKET_NAME",
	"region":        "AWS_REGION",
	"function_name": "LAMBDA_FUNCTION_NAME",
	"access_key":    "AWS_ACCESS_KEY_ID",
	"secret_key":    "AWS_SECRET_ACCESS_KEY",
}

// NewViper prepares a viper instance for the config file at path. A .env file
// next to the config is loaded into the environment first; variables already
// set win. A missing config file is not an error.
func NewViper(path string) (*viper.Viper, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if utils.FileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("env file '%s': %w", envFile, err)
		}
		slog.Debug("loaded env file", "path", envFile)
	}

	v := viper.New()
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("bucket", "")
	v.SetDefault("region", "")
	v.SetDefault("function_name", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("access_key", "")
	v.SetDefault("secret_key", "")
	v.SetDefault("sync_interval", DefaultSyncInterval)
	v.SetDefault("cache_life", time.Duration(0))
	v.SetDefault("selfie_folder", DefaultSelfieFolder)
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("download_concurrency", DefaultDownloadConcurrency)
	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("http_token", "")
	v.SetDefault("watch_dir", "")
	v.SetDefault("cors_origins", []string{})

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// FromViper decodes and validates the config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the config file at path together with the environment.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate normalizes paths, fills defaults and rejects invalid values.
func (c *Config) Validate() error {
	var err error

	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	c.CacheDir, err = utils.ResolvePath(c.CacheDir)
	if err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}

	if c.Path != "" {
		c.Path, err = utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if c.WatchDir == "" {
		c.WatchDir = c.CacheDir
	}
	c.WatchDir, err = utils.ResolvePath(c.WatchDir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	if c.Bucket == "" {
		return ErrNoBucket
	}
	if c.Region == "" {
		return ErrNoRegion
	}

	switch {
	case c.SyncInterval == 0:
		c.SyncInterval = DefaultSyncInterval
	case c.SyncInterval < 0:
		return fmt.Errorf("sync interval must be positive, got %s", c.SyncInterval)
	case c.SyncInterval < MinSyncInterval:
		return fmt.Errorf("sync interval must be at least %s, got %s", MinSyncInterval, c.SyncInterval)
	}

	if c.CacheLife < 0 {
		return fmt.Errorf("cache life must not be negative, got %s", c.CacheLife)
	}

	c.SelfieFolder = strings.Trim(c.SelfieFolder, "/")
	if c.SelfieFolder == "" {
		c.SelfieFolder = DefaultSelfieFolder
	}
	if !filepath.IsLocal(filepath.FromSlash(c.SelfieFolder)) {
		return fmt.Errorf("selfie folder %q is not a relative path", c.SelfieFolder)
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.DownloadConcurrency <= 0 {
		c.DownloadConcurrency = DefaultDownloadConcurrency
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}

	origins := make([]string, 0, len(c.CORSOrigins))
	for _, o := range c.CORSOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins

	return nil
}

// UsesLambda reports whether diffs run in the deployed function rather than
// in process.
func (c *Config) UsesLambda() bool {
	return c.FunctionName != ""
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", c.Path),
		slog.String("cache_dir", c.CacheDir),
		slog.String("bucket", c.Bucket),
		slog.String("region", c.Region),
		slog.String("function_name", c.FunctionName),
		slog.Duration("sync_interval", c.SyncInterval),
		slog.Duration("cache_life", c.CacheLife),
		slog.String("http_addr", c.HTTPAddr),
		slog.String("watch_dir", c.WatchDir),
		slog.Any("cors_origins", c.CORSOrigins),
	)
}
