package blob

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const metadataChecksum = "sha256"

// S3Client maps the storage zone onto a bucket and the rest of the key onto the object key.
type S3Client struct {
	s3Client *s3.Client
	config   *Config
}

func NewS3Client(s3Client *s3.Client, cfg *Config) *S3Client {
	return &S3Client{
		s3Client: s3Client,
		config:   cfg,
	}
}

func NewS3ClientWithConfig(ctx context.Context, cfg *Config) (*S3Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: cfg.timeout(),
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(region),
		config.WithHTTPClient(httpClient),
		config.WithRetryMaxAttempts(cfg.maxRetries()+1),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewS3Client(awsClient, cfg), nil
}

// ===================================================================================================

func (s *S3Client) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	bucket, object := SplitKey(params.Key)
	if bucket == "" || object == "" {
		return nil, newError("put", params.Key, ErrInvalidKey)
	}

	body, err := openBody(params)
	if err != nil {
		return nil, newError("put", params.Key, err)
	}
	defer body.Close()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(object),
		Body:          body.reader,
		ContentLength: aws.Int64(body.size),
		ContentType:   aws.String(ContentType(object, params.FilePath)),
	}

	if params.Checksum != "" {
		sum, err := checksumSHA256(params.Checksum)
		if err != nil {
			return nil, newError("put", params.Key, err)
		}
		input.ChecksumSHA256 = aws.String(sum)
		input.Metadata = map[string]string{metadataChecksum: strings.ToUpper(params.Checksum)}
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return nil, s3Error("put", params.Key, err)
	}

	// s3.PutObjectOutput does not have LastModified
	return &PutObjectResponse{
		Key:          CleanKey(params.Key),
		Size:         body.size,
		Checksum:     strings.ToUpper(params.Checksum),
		LastModified: time.Now().UTC(),
	}, nil
}

// ===================================================================================================

func (s *S3Client) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	bucket, object := SplitKey(key)
	if bucket == "" || object == "" {
		return nil, newError("get", key, ErrInvalidKey)
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(object),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		return nil, s3Error("get", key, err)
	}

	return &GetObjectResponse{
		Body:         resp.Body,
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// ===================================================================================================

func (s *S3Client) DeleteObject(ctx context.Context, key string) error {
	bucket, object := SplitKey(key)
	if bucket == "" || object == "" {
		return newError("delete", key, ErrInvalidKey)
	}

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		if err := s3Error("delete", key, err); !IsNotFound(err) {
			return err
		}
	}
	return nil
}

// ===================================================================================================

// checksumSHA256 converts a hex fingerprint to the base64 digest S3 expects.
func checksumSHA256(fingerprint string) (string, error) {
	raw, err := hex.DecodeString(fingerprint)
	if err != nil {
		return "", fmt.Errorf("invalid checksum %q: %w", fingerprint, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func s3Error(op, key string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return newError(op, key, fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return newError(op, key, fmt.Errorf("%w: %w", ErrNotFound, err))
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return newError(op, key, fmt.Errorf("%w: %w", ErrAccessDenied, err))
		case "BadDigest", "InvalidDigest", "XAmzContentSHA256Mismatch", "XAmzContentChecksumMismatch":
			return newError(op, key, fmt.Errorf("%w: %w", ErrChecksumMismatch, err))
		}
	}
	return newError(op, key, err)
}

var _ IBlobClient = (*S3Client)(nil)
