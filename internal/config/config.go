package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/sync"
	"github.com/lostsignal/bunnysync/internal/utils"
	"github.com/lostsignal/bunnysync/internal/workspace"
)

const (
	EnvPrefix      = "BUNNYSYNC"
	ConfigFileName = "config"

	// fsStorageDir is where the fs backend keeps objects when no endpoint is set.
	fsStorageDir = "storage"
)

var (
	ErrNoStorageZone      = errors.New("storage zone is required")
	ErrNoAccessKey        = errors.New("access key is required")
	ErrNoSecretKey        = errors.New("secret key is required")
	ErrNoEndpoint         = errors.New("endpoint is required")
	ErrNoDirectory        = errors.New("directory is required")
	ErrInvalidBackend     = errors.New("invalid backend")
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	ErrInvalidRetries     = errors.New("max retries must not be negative")
)

type Config struct {
	StorageZone  string `json:"storage_zone" yaml:"storage_zone,omitempty" mapstructure:"storage_zone"`
	AccessKey    string `json:"access_key" yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey    string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
	Directory    string `json:"directory" yaml:"directory,omitempty" mapstructure:"directory"`
	Folder       string `json:"folder,omitempty" yaml:"folder,omitempty" mapstructure:"folder"`
	Backend      string `json:"backend,omitempty" yaml:"backend,omitempty" mapstructure:"backend"`
	Endpoint     string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	UsePathStyle bool   `json:"use_path_style,omitempty" yaml:"use_path_style,omitempty" mapstructure:"use_path_style"`
	Concurrency  int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	MaxRetries   int    `json:"max_retries,omitempty" yaml:"max_retries" mapstructure:"max_retries"`
	IgnoreFile   string `json:"ignore_file,omitempty" yaml:"ignore_file,omitempty" mapstructure:"ignore_file"`
	HashCache    bool   `json:"hash_cache,omitempty" yaml:"hash_cache,omitempty" mapstructure:"hash_cache"`
	DataDir      string `json:"data_dir,omitempty" yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	Path         string `json:"-" yaml:"-" mapstructure:"-"`
}

// Defaults returns the values applied before flags, env and config file.
func Defaults() map[string]any {
	return map[string]any{
		"backend":     string(blob.BackendBunny),
		"concurrency": sync.DefaultConcurrency,
		"max_retries": blob.DefaultMaxRetries,
		"data_dir":    workspace.DefaultDataDir,
	}
}

// Validate checks the config and normalizes paths and names in place.
func (c *Config) Validate() error {
	backend, err := blob.ParseBackend(c.Backend)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	c.Backend = string(backend)

	c.StorageZone = strings.TrimSpace(c.StorageZone)
	if c.StorageZone == "" {
		return ErrNoStorageZone
	}
	if strings.ContainsAny(c.StorageZone, `/\`) {
		return fmt.Errorf("invalid storage zone %q", c.StorageZone)
	}

	switch backend {
	case blob.BackendBunny:
		if c.AccessKey == "" {
			return ErrNoAccessKey
		}
	case blob.BackendS3:
		if c.AccessKey == "" {
			return ErrNoAccessKey
		}
		if c.SecretKey == "" {
			return ErrNoSecretKey
		}
	case blob.BackendMinio:
		if c.AccessKey == "" {
			return ErrNoAccessKey
		}
		if c.SecretKey == "" {
			return ErrNoSecretKey
		}
		if c.Endpoint == "" {
			return ErrNoEndpoint
		}
	case blob.BackendFS:
		if c.Endpoint != "" {
			if c.Endpoint, err = utils.ResolvePath(c.Endpoint); err != nil {
				return fmt.Errorf("endpoint: %w", err)
			}
		}
	}

	if strings.TrimSpace(c.Directory) == "" {
		return ErrNoDirectory
	}
	if c.Directory, err = utils.ResolvePath(c.Directory); err != nil {
		return fmt.Errorf("directory: %w", err)
	}

	if c.DataDir == "" {
		c.DataDir = workspace.DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	if c.IgnoreFile != "" {
		if c.IgnoreFile, err = utils.ResolvePath(c.IgnoreFile); err != nil {
			return fmt.Errorf("ignore file: %w", err)
		}
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if c.Concurrency == 0 {
		c.Concurrency = sync.DefaultConcurrency
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Concurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.MaxRetries)
	}

	c.Folder = blob.NormalizePath(c.Folder)
	return nil
}

// Destination is where the directory is mirrored to.
func (c *Config) Destination() blob.Destination {
	return blob.Destination{Zone: c.StorageZone, Folder: c.Folder}
}

// BlobConfig maps the config onto the storage client settings.
func (c *Config) BlobConfig() *blob.Config {
	cfg := &blob.Config{
		Backend:      blob.Backend(c.Backend),
		StorageZone:  c.StorageZone,
		AccessKey:    c.AccessKey,
		SecretKey:    c.SecretKey,
		Region:       c.Region,
		Endpoint:     c.Endpoint,
		UsePathStyle: c.UsePathStyle,
		MaxRetries:   c.MaxRetries,
	}
	if cfg.Backend == blob.BackendFS {
		cfg.Root = c.Endpoint
		if cfg.Root == "" {
			cfg.Root = filepath.Join(c.DataDir, fsStorageDir)
		}
	}
	// a zero value means the client default, so an explicit zero is passed as negative
	if c.MaxRetries == 0 {
		cfg.MaxRetries = -1
	}
	return cfg
}

// Masked returns a copy safe to print.
func (c *Config) Masked() *Config {
	masked := *c
	masked.AccessKey = utils.MaskSecret(c.AccessKey)
	masked.SecretKey = utils.MaskSecret(c.SecretKey)
	return &masked
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{zone=%s backend=%s region=%s directory=%s folder=%s access_key=%s concurrency=%d}",
		c.StorageZone, c.Backend, c.Region, c.Directory, c.Folder, utils.MaskSecret(c.AccessKey), c.Concurrency)
}
