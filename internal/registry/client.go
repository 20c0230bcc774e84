package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultTimeout  = 2 * time.Minute
	defaultRetryMax = 3
	retryBaseDelay  = time.Second

	apiKeyHeader = "X-API-Key"
)

// APIError represents a non-2xx response from the registry.
type APIError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "registry: api error <nil>"
	}
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("registry: %s", e.Status)
	}
	return fmt.Sprintf("registry: %s: %s", e.Status, body)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if c == nil || hc == nil {
			return
		}
		c.httpClient = hc
	}
}

// WithRetry sets the max retry count for retryable failures.
func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		if c == nil {
			return
		}
		if maxRetries < 0 {
			maxRetries = 0
		}
		if maxRetries > defaultRetryMax {
			maxRetries = defaultRetryMax
		}
		c.retryMax = maxRetries
	}
}

// Client publishes persisted corpus artifacts to a remote dataset registry.
// Publishing is a best-effort side channel; a failed push never invalidates
// the local artifact.
type Client struct {
	baseURL    string
	prefix     string
	apiKey     string
	httpClient *http.Client
	retryMax   int
	retryBase  time.Duration
}

// NewClient constructs a registry client. The API key falls back to the
// CORPUS_REGISTRY_API_KEY environment variable.
func NewClient(baseURL, prefix, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		prefix:     strings.TrimSpace(prefix),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryMax:   defaultRetryMax,
		retryBase:  retryBaseDelay,
	}
	if c.apiKey == "" {
		c.apiKey = strings.TrimSpace(os.Getenv("CORPUS_REGISTRY_API_KEY"))
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// DatasetName is the remote name an artifact publishes under.
func (c *Client) DatasetName(variantName string) string {
	variantName = strings.TrimSpace(variantName)
	if c == nil || c.prefix == "" {
		return variantName
	}
	return fmt.Sprintf("%s_%s", c.prefix, variantName)
}

// Publish uploads every file of one artifact directory to the registry under
// <prefix>_<variant>.
func (c *Client) Publish(ctx context.Context, artifactDir, variantName string) error {
	if c == nil {
		return errors.New("registry: nil client")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c.baseURL == "" {
		return errors.New("registry: missing base url")
	}
	variantName = strings.TrimSpace(variantName)
	if variantName == "" {
		return errors.New("registry: missing variant name")
	}

	entries, err := os.ReadDir(artifactDir)
	if err != nil {
		return fmt.Errorf("registry: read artifact dir %q: %w", artifactDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	if len(files) == 0 {
		return fmt.Errorf("registry: artifact dir %q has no files", artifactDir)
	}

	dataset := c.DatasetName(variantName)
	for _, name := range files {
		if err := c.uploadFile(ctx, dataset, filepath.Join(artifactDir, name), name); err != nil {
			return fmt.Errorf("registry: push %q to %q: %w", name, dataset, err)
		}
	}
	return nil
}

func (c *Client) uploadFile(ctx context.Context, dataset, path, name string) error {
	url := fmt.Sprintf("%s/datasets/%s/%s", c.baseURL, dataset, name)

	for attempt := 0; ; attempt++ {
		err := c.put(ctx, url, path, name)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) || attempt >= c.retryMax {
			return err
		}
		if err := sleepWithContext(ctx, c.retryBase*time.Duration(attempt+1)); err != nil {
			return err
		}
	}
}

func (c *Client) put(ctx context.Context, url, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(name))
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}

func shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			(apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599)
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
