package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// ErrRedirect is wrapped by the transport error of a request sent with RedirectError.
var ErrRedirect = errors.New("redirect not allowed")

// Doer sends a single HTTP request. *http.Client implements it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

var _ Doer = (*http.Client)(nil)

// Client owns the transport and logger shared by every Resource created from it.
type Client struct {
	doer           Doer
	logger         *zap.Logger
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
}

type ClientOption func(*Client)

// DefaultClient backs New, NewFromURL and NewFromRequest.
var DefaultClient = NewClient()

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if c.doer != nil {
		return c
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err != nil {
			c.logger.Warn("ignoring invalid proxy URL", zap.String("proxy", c.proxyURL), zap.Error(err))
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	c.doer = &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: c.checkRedirect,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithHTTPClient sends requests through doer instead of a client built from
// the transport options. Init.Redirect is only honored when doer consults
// RedirectModeFromContext in its own redirect policy.
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithLogger sets the logger used for body-parse diagnostics
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

type redirectModeKey struct{}

// RedirectModeFromContext returns the RedirectMode a request was sent with.
func RedirectModeFromContext(ctx context.Context) RedirectMode {
	if mode, ok := ctx.Value(redirectModeKey{}).(RedirectMode); ok {
		return mode
	}
	return RedirectFollow
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	switch RedirectModeFromContext(req.Context()) {
	case RedirectManual:
		return http.ErrUseLastResponse
	case RedirectError:
		return fmt.Errorf("%w: %s", ErrRedirect, req.URL)
	}

	if !c.followRedirect {
		return http.ErrUseLastResponse
	}
	if len(via) >= c.maxRedirects {
		return http.ErrUseLastResponse
	}
	return nil
}

// Do sends one request to rawURL using a fully merged Init. Non-2xx statuses
// are not errors; only configuration and transport failures are returned.
func (c *Client) Do(ctx context.Context, rawURL string, init Init) (*Response, error) {
	method, err := normalizeMethod(init.Method)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	for k, v := range c.defaultHeaders {
		header.Set(k, v)
	}
	for k, v := range init.Headers {
		header.Set(k, v)
	}

	parseBody := init.parseBody()
	if init.json() {
		header.Set("Accept", MIMEJSON)
		parseBody = true
	}

	body := init.Body
	if init.JSONBody != nil {
		body, err = json.Marshal(init.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON body: %w", err)
		}
		header.Set("Content-Type", MIMEJSON)
	}

	if init.Query != nil {
		encoded, err := EncodeQuery(init.Query)
		if err != nil {
			return nil, err
		}
		rawURL = appendQuery(rawURL, encoded)
	}

	if init.Redirect != "" {
		ctx = context.WithValue(ctx, redirectModeKey{}, init.Redirect)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = header

	if init.Credentials != nil {
		httpReq.SetBasicAuth(init.Credentials.Username, init.Credentials.Password)
	}

	start := time.Now()
	httpResp, err := c.doer.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, httpReq.URL.Redacted(), err)
	}
	defer httpResp.Body.Close()

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Duration:   duration,
		URL:        httpReq.URL.String(),
		Method:     method,
	}

	resp.Body, err = io.ReadAll(httpResp.Body)
	if err != nil {
		if !parseBody {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		c.logParseFailure(httpReq, "failed to read body for request", err)
		return resp, nil
	}

	if parseBody {
		resp.Data = c.parseBody(httpReq, resp.Body)
	}

	return resp, nil
}

// parseBody picks a parser from the request's Accept header. Failures are
// logged at debug level and leave the data unset.
func (c *Client) parseBody(req *http.Request, body []byte) any {
	switch mediaType(req.Header.Get("Accept")) {
	case MIMEJSON:
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			c.logParseFailure(req, "failed to parse JSON body for request", err)
			return nil
		}
		return data
	case MIMEOctetStream:
		return body
	default:
		return string(body)
	}
}

func (c *Client) logParseFailure(req *http.Request, msg string, err error) {
	c.logger.Debug(msg,
		zap.String("url", req.URL.String()),
		zap.String("method", req.Method),
		zap.Error(err),
	)
}

func mediaType(value string) string {
	mt, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mt
}
