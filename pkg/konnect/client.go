package konnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// apiPrefix is prepended to every request path.
const apiPrefix = "/v2"

// DefaultTimeout bounds a single Konnect call.
const DefaultTimeout = 30 * time.Second

// ErrMissingToken is returned before any network I/O when no access token is
// configured.
var ErrMissingToken = errors.New("Konnect access token not configured (set KONNECT_ACCESS_TOKEN)")

// API is the set of Konnect operations exposed as tools. *Client implements
// it; tests substitute fakes.
type API interface {
	QueryAPIRequests(ctx context.Context, p QueryAPIRequestsParams) (*APIRequestsResult, error)
	GetConsumerRequests(ctx context.Context, p ConsumerRequestsParams) (*ConsumerRequestsResult, error)

	ListServices(ctx context.Context, p EntityListParams) (*EntityList, error)
	ListRoutes(ctx context.Context, p EntityListParams) (*EntityList, error)
	ListConsumers(ctx context.Context, p EntityListParams) (*EntityList, error)
	ListPlugins(ctx context.Context, p EntityListParams) (*EntityList, error)

	ListControlPlanes(ctx context.Context, p ListControlPlanesParams) (*ControlPlaneList, error)
	GetControlPlane(ctx context.Context, controlPlaneID string) (*ControlPlaneDetails, error)
	ListControlPlaneGroupMemberships(ctx context.Context, p GroupMembershipsParams) (*GroupMemberships, error)
	CheckControlPlaneGroupMembership(ctx context.Context, controlPlaneID string) (*GroupMembershipStatus, error)
}

// APIError is a non-2xx response from Konnect.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("Konnect API error %d", e.StatusCode)
	if e.Title != "" {
		msg += " " + e.Title
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Client implements API over HTTP.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The caller owns its
// transport and instrumentation.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for baseURL (e.g. https://us.api.konghq.com)
// authenticating with token. The default transport is wrapped with otelhttp
// so upstream calls show up as client spans.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: "konnect-mcp",
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ API = (*Client)(nil)

// get issues a GET and decodes the body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post issues a POST with a JSON body and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.token == "" {
		return ErrMissingToken
	}

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseError turns a Konnect problem-details body into an *APIError.
func parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var problem struct {
		Title   string `json:"title"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &problem); err == nil {
		if problem.Title != "" {
			apiErr.Title = problem.Title
		}
		apiErr.Detail = problem.Detail
		if apiErr.Detail == "" {
			apiErr.Detail = problem.Message
		}
	} else if s := strings.TrimSpace(string(data)); s != "" {
		apiErr.Detail = s
	}
	return apiErr
}
