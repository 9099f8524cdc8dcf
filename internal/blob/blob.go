package blob

import (
	"context"
	"fmt"
)

// NewClient builds the IBlobClient for the configured backend.
func NewClient(ctx context.Context, cfg *Config) (IBlobClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("blob: nil config")
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendBunny
	}

	switch backend {
	case BackendBunny:
		return NewBunnyClient(cfg), nil
	case BackendS3:
		client, err := NewS3ClientWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case BackendMinio:
		client, err := NewMinioClientWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case BackendFS:
		client, err := NewFSClientWithRoot(cfg.Root)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
