package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/lostsignal/bunnysync/internal/version"
)

const (
	bunnyDefaultHost   = "storage.bunnycdn.com"
	bunnyHeaderKey     = "AccessKey"
	bunnyHeaderSum     = "Checksum"
	bunnyRetryMinDelay = 500 * time.Millisecond
	bunnyRetryMaxDelay = 5 * time.Second
)

// BunnyBaseURL returns the storage API endpoint of a region.
// The empty region and "de" both map to the primary Falkenstein endpoint.
func BunnyBaseURL(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" || region == "de" {
		return "https://" + bunnyDefaultHost
	}
	return fmt.Sprintf("https://%s.%s", region, bunnyDefaultHost)
}

// BunnyClient talks to the BunnyCDN edge storage HTTP API.
type BunnyClient struct {
	client *req.Client
	config *Config
}

func NewBunnyClient(cfg *Config) *BunnyClient {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = BunnyBaseURL(cfg.Region)
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetUserAgent(version.UserAgent()).
		SetTimeout(cfg.timeout()).
		SetCommonHeader(bunnyHeaderKey, cfg.AccessKey).
		SetCommonRetryCount(cfg.maxRetries()).
		SetCommonRetryBackoffInterval(bunnyRetryMinDelay, bunnyRetryMaxDelay).
		SetCommonRetryCondition(retryable)

	return &BunnyClient{
		client: client,
		config: cfg,
	}
}

// ===================================================================================================

func (c *BunnyClient) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	key := CleanKey(params.Key)
	if key == "" {
		return nil, newError("put", params.Key, ErrInvalidKey)
	}

	body, err := openBody(params)
	if err != nil {
		return nil, newError("put", key, err)
	}
	defer body.Close()

	// the whole object is buffered so retries can replay it
	data, err := io.ReadAll(body.reader)
	if err != nil {
		return nil, newError("put", key, err)
	}

	checksum := strings.ToUpper(params.Checksum)
	if checksum == "" {
		checksum = hasher.Sum(data)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(bunnyHeaderSum, checksum).
		SetHeader("Content-Type", defaultContentType).
		SetBodyBytes(data).
		Put(objectURL(key))
	if err := bunnyError("put", key, resp, err); err != nil {
		return nil, err
	}

	return &PutObjectResponse{
		Key:          key,
		Size:         int64(len(data)),
		Checksum:     checksum,
		LastModified: time.Now().UTC(),
	}, nil
}

// ===================================================================================================

func (c *BunnyClient) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	key = CleanKey(key)
	if key == "" {
		return nil, newError("get", key, ErrInvalidKey)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(objectURL(key))
	if err != nil {
		return nil, newError("get", key, err)
	}

	if resp.IsErrorState() {
		defer resp.Body.Close()
		return nil, bunnyError("get", key, resp, nil)
	}

	lastModified, _ := http.ParseTime(resp.GetHeader("Last-Modified"))
	return &GetObjectResponse{
		Body:         resp.Body,
		Size:         resp.ContentLength,
		LastModified: lastModified,
	}, nil
}

// ===================================================================================================

func (c *BunnyClient) DeleteObject(ctx context.Context, key string) error {
	key = CleanKey(key)
	if key == "" {
		return newError("delete", key, ErrInvalidKey)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		Delete(objectURL(key))
	if err := bunnyError("delete", key, resp, err); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// ===================================================================================================

func objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

func retryable(resp *req.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := resp.GetStatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func bunnyError(op, key string, resp *req.Response, requestErr error) error {
	if requestErr != nil {
		return newError(op, key, requestErr)
	}
	if !resp.IsErrorState() {
		return nil
	}

	code := resp.GetStatusCode()
	body, _ := resp.ToString()
	msg := strings.TrimSpace(body)
	switch {
	case code == http.StatusNotFound:
		return newError(op, key, ErrNotFound)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return newError(op, key, ErrAccessDenied)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "checksum"):
		return newError(op, key, fmt.Errorf("%w: %s", ErrChecksumMismatch, msg))
	default:
		return newError(op, key, fmt.Errorf("unexpected status %d: %s", code, msg))
	}
}

var _ IBlobClient = (*BunnyClient)(nil)
