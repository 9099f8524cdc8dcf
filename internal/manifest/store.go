package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/hasher"
)

// Store reads and writes the manifest object of a destination.
type Store struct {
	client blob.IBlobClient
}

func NewStore(client blob.IBlobClient) *Store {
	return &Store{client: client}
}

// Key returns the object key of the manifest for dest.
func Key(dest blob.Destination) string {
	return dest.Path(FileName)
}

// Fetch downloads and decodes the manifest of dest.
// A missing manifest is reported as blob.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, dest blob.Destination) (Manifest, error) {
	key := Key(dest)

	obj, err := s.client.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest '%s': %w", key, err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode manifest '%s': %w", key, err)
	}
	return m, nil
}

// FetchRemote is Fetch that never fails: any error is logged and an empty
// manifest is returned, so the next run re-uploads everything.
func (s *Store) FetchRemote(ctx context.Context, dest blob.Destination) Manifest {
	m, err := s.Fetch(ctx, dest)
	if err == nil {
		return m
	}

	if errors.Is(err, blob.ErrNotFound) {
		slog.Info("manifest not found, treating remote as empty", "key", Key(dest))
	} else {
		slog.Warn("manifest unavailable, treating remote as empty", "key", Key(dest), "error", err)
	}
	return New()
}

// Persist uploads m as the manifest of dest.
func (s *Store) Persist(ctx context.Context, dest blob.Destination, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	key := Key(dest)
	_, err = s.client.PutObject(ctx, &blob.PutObjectParams{
		Key:      key,
		Body:     bytes.NewReader(data),
		Size:     int64(len(data)),
		Checksum: hasher.Sum(data),
	})
	if err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}

	slog.Debug("manifest saved", "key", key, "entries", len(m), "size", len(data))
	return nil
}
