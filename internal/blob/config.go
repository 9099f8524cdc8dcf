package blob

import (
	"fmt"
	"strings"
	"time"
)

type Backend string

const (
	BackendBunny Backend = "bunny"
	BackendS3    Backend = "s3"
	BackendMinio Backend = "minio"
	BackendFS    Backend = "fs"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 5 * time.Minute
)

// Backends lists every supported backend name.
var Backends = []Backend{BackendBunny, BackendS3, BackendMinio, BackendFS}

// ParseBackend resolves a backend name. An empty name means bunny.
func ParseBackend(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BackendBunny, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

type Config struct {
	Backend     Backend
	StorageZone string
	AccessKey   string
	// SecretKey is only used by the s3 and minio backends.
	SecretKey    string
	Region       string
	Endpoint     string
	UsePathStyle bool
	MaxRetries   int
	Timeout      time.Duration
	// Root is the base directory of the fs backend.
	Root string
}

func (c *Config) maxRetries() int {
	if c.MaxRetries < 0 {
		return 0
	}
	if c.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
