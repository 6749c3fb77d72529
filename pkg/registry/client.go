package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/deptree/pkg/buildinfo"
	"github.com/matzehuels/deptree/pkg/deps"
	apperr "github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/observability"
)

const (
	// DefaultURL is the public npm registry.
	DefaultURL = "https://registry.npmjs.org"

	// DefaultTimeout bounds a single registry request.
	DefaultTimeout = 10 * time.Second

	maxManifestSize = 16 << 20
)

// Client fetches manifests from a registry. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	headers map[string]string
}

// NewClient creates a Client for the registry at baseURL. A timeout <= 0
// uses [DefaultTimeout]. Headers are applied to every request on top of the
// defaults (Accept: application/json, User-Agent: deptree/<version>).
func NewClient(baseURL string, timeout time.Duration, headers map[string]string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if err := apperr.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "invalid registry URL")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	h := map[string]string{
		"Accept":     "application/json",
		"User-Agent": buildinfo.UserAgent(),
	}
	for k, v := range headers {
		h[k] = v
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: u,
		headers: h,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// BaseURL returns the registry base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// ManifestURL returns the URL FetchManifest requests for ref.
func (c *Client) ManifestURL(ref deps.PackageRef) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + ref.Name + "/" + ref.Version
	u.RawPath = c.baseURL.EscapedPath() + "/" + url.PathEscape(ref.Name) + "/" + url.PathEscape(ref.Version)
	return u.String()
}

// FetchManifest implements [deps.Fetcher] with exactly one GET request.
// A version document without a "dependencies" field yields an empty manifest.
func (c *Client) FetchManifest(ctx context.Context, ref deps.PackageRef) (deps.Manifest, error) {
	body, err := c.doRequest(ctx, c.ManifestURL(ref))
	if err != nil {
		if apperr.Is(err, apperr.ErrCodePackageNotFound) {
			return nil, apperr.Wrap(apperr.ErrCodePackageNotFound, err, "package %s not found in registry", ref)
		}
		return nil, err
	}
	defer body.Close()

	var doc versionDocument
	if err := json.NewDecoder(io.LimitReader(body, maxManifestSize)).Decode(&doc); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeRegistry, err, "decode manifest for %s", ref)
	}
	if doc.Dependencies == nil {
		return deps.Manifest{}, nil
	}
	return doc.Dependencies, nil
}

type versionDocument struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

func (c *Client) doRequest(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "build request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.EscapedPath()
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, transportError(ctx, err)
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return apperr.Wrap(apperr.ErrCodeTimeout, ctxErr, "registry request timed out")
		}
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RetryableError{Err: apperr.Wrap(apperr.ErrCodeTimeout, err, "registry request timed out")}
	}
	return &RetryableError{Err: apperr.Wrap(apperr.ErrCodeRegistry, err, "registry unreachable")}
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return apperr.New(apperr.ErrCodePackageNotFound, "registry returned status %d", code)
	case code == http.StatusTooManyRequests:
		limited := &apperr.RateLimitedError{RetryAfter: retryAfter(resp)}
		return &RetryableError{Err: apperr.Wrap(apperr.ErrCodeRateLimited, limited, "registry rate limit")}
	case code >= 500:
		return &RetryableError{Err: apperr.New(apperr.ErrCodeRegistry, "registry returned status %d", code)}
	default:
		return apperr.New(apperr.ErrCodeRegistry, "registry returned status %d", code)
	}
}

func retryAfter(resp *http.Response) int {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

var _ deps.Fetcher = (*Client)(nil)
