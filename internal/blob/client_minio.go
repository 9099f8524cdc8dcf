package blob

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient targets MinIO and other S3-compatible servers through minio-go.
type MinioClient struct {
	client *minio.Client
	config *Config
}

func NewMinioClient(client *minio.Client, cfg *Config) *MinioClient {
	return &MinioClient{
		client: client,
		config: cfg,
	}
}

func NewMinioClientWithConfig(cfg *Config) (*MinioClient, error) {
	host, secure, err := minioEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	lookup := minio.BucketLookupAuto
	if cfg.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return NewMinioClient(client, cfg), nil
}

// minioEndpoint accepts either a bare host:port or a URL.
func minioEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("minio backend requires an endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return u.Host, u.Scheme == "https", nil
}

// ===================================================================================================

func (m *MinioClient) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	bucket, object := SplitKey(params.Key)
	if bucket == "" || object == "" {
		return nil, newError("put", params.Key, ErrInvalidKey)
	}

	body, err := openBody(params)
	if err != nil {
		return nil, newError("put", params.Key, err)
	}
	defer body.Close()

	opts := minio.PutObjectOptions{
		ContentType: ContentType(object, params.FilePath),
	}
	if params.Checksum != "" {
		opts.UserMetadata = map[string]string{metadataChecksum: strings.ToUpper(params.Checksum)}
	}

	info, err := m.client.PutObject(ctx, bucket, object, body.reader, body.size, opts)
	if err != nil {
		return nil, minioError("put", params.Key, err)
	}

	lastModified := info.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now().UTC()
	}

	return &PutObjectResponse{
		Key:          CleanKey(params.Key),
		Size:         info.Size,
		Checksum:     strings.ToUpper(params.Checksum),
		LastModified: lastModified,
	}, nil
}

// ===================================================================================================

func (m *MinioClient) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	bucket, object := SplitKey(key)
	if bucket == "" || object == "" {
		return nil, newError("get", key, ErrInvalidKey)
	}

	obj, err := m.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError("get", key, err)
	}

	// GetObject is lazy, Stat surfaces a missing object
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, minioError("get", key, err)
	}

	return &GetObjectResponse{
		Body:         obj,
		Size:         stat.Size,
		LastModified: stat.LastModified,
	}, nil
}

// ===================================================================================================

func (m *MinioClient) DeleteObject(ctx context.Context, key string) error {
	bucket, object := SplitKey(key)
	if bucket == "" || object == "" {
		return newError("delete", key, ErrInvalidKey)
	}

	if err := m.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		if err := minioError("delete", key, err); !IsNotFound(err) {
			return err
		}
	}
	return nil
}

// ===================================================================================================

func minioError(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return newError(op, key, fmt.Errorf("%w: %w", ErrNotFound, err))
	case resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch":
		return newError(op, key, fmt.Errorf("%w: %w", ErrAccessDenied, err))
	case resp.Code == "BadDigest" || resp.Code == "XAmzContentSHA256Mismatch":
		return newError(op, key, fmt.Errorf("%w: %w", ErrChecksumMismatch, err))
	}
	return newError(op, key, err)
}

var _ IBlobClient = (*MinioClient)(nil)
