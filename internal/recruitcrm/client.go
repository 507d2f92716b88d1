// Package recruitcrm provides a minimal client for the RecruitCRM REST API.
package recruitcrm

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
)

// Service names one of the RecruitCRM API hosts.
type Service string

const (
	ServiceAlbatross Service = "albatross"
	ServiceReport    Service = "report"
	ServiceCandidate Service = "candidate"
	ServiceCalendar  Service = "calendar"
	ServiceEmail     Service = "email"
	ServicePipeline  Service = "pipeline"
	ServiceAPI       Service = "api"
)

// DefaultOrigin is sent as the Origin header; some RecruitCRM hosts reject requests without it.
const DefaultOrigin = "https://app.recruitcrm.io"

// DefaultTimeout bounds a single outbound call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// DefaultMaxResponseBytes caps a reply body when Options.MaxResponseBytes is unset.
const DefaultMaxResponseBytes = 10 << 20

// DefaultBaseURLs returns the production base URL of every service.
func DefaultBaseURLs() map[Service]string {
	return map[Service]string{
		ServiceAlbatross: "https://albatross.recruitcrm.io",
		ServiceReport:    "https://report.recruitcrm.io",
		ServiceCandidate: "https://candidate.recruitcrm.io",
		ServiceCalendar:  "https://ostrich.recruitcrm.io",
		ServiceEmail:     "https://nyma.recruitcrm.io",
		ServicePipeline:  "https://hiring-pipeline.recruitcrm.io",
		ServiceAPI:       "https://api.recruitcrm.io",
	}
}

// Services lists every known service in a stable order.
func Services() []Service {
	return []Service{
		ServiceAlbatross, ServiceReport, ServiceCandidate, ServiceCalendar,
		ServiceEmail, ServicePipeline, ServiceAPI,
	}
}

// Credentials holds the bearer token attached to every call.
type Credentials struct {
	Token string
}

// String never prints the token.
func (c Credentials) String() string {
	if c.Token == "" {
		return "Credentials{unset}"
	}
	return "Credentials{redacted}"
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURLs   map[Service]string
	Origin     string
	Timeout    time.Duration
	HTTPClient *http.Client

	// MaxResponseBytes caps reply bodies. Larger replies fail with a TransportError.
	MaxResponseBytes int64
}

// Client is a thin HTTP client for RecruitCRM. It is immutable after New and safe for concurrent use.
type Client struct {
	baseURLs map[Service]*url.URL
	creds    Credentials
	origin   string
	http     *http.Client
	maxBody  int64
}

// Request describes one outbound call.
type Request struct {
	Service Service
	Method  string
	Path    string
	Query   url.Values
	// Body is JSON encoded when non-nil.
	Body any
}

// Response is the raw CRM reply. Non-2xx statuses are not errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError reports a failure to reach RecruitCRM or to read its reply.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ErrMissingToken is returned by New when the credentials carry no token.
var ErrMissingToken = errors.New("recruitcrm: bearer token missing")

// New returns a new client. If opts.HTTPClient is nil, one with opts.Timeout (or DefaultTimeout) is used.
func New(creds Credentials, opts Options) (*Client, error) {
	if strings.TrimSpace(creds.Token) == "" {
		return nil, ErrMissingToken
	}
	raw := DefaultBaseURLs()
	for svc, u := range opts.BaseURLs {
		if u != "" {
			raw[svc] = u
		}
	}
	bases := make(map[Service]*url.URL, len(raw))
	for svc, u := range raw {
		parsed, err := url.Parse(strings.TrimRight(u, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid base url for %s: %w", svc, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid base url for %s: %q is not absolute", svc, u)
		}
		bases[svc] = parsed
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	origin := opts.Origin
	if origin == "" {
		origin = DefaultOrigin
	}
	maxBody := opts.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	return &Client{baseURLs: bases, creds: creds, origin: origin, http: httpClient, maxBody: maxBody}, nil
}

// URL composes the absolute URL for a request.
func (c *Client) URL(req Request) (string, error) {
	base, ok := c.baseURLs[req.Service]
	if !ok {
		return "", fmt.Errorf("unknown service %q", req.Service)
	}
	u := *base
	escaped := base.EscapedPath() + "/" + strings.TrimLeft(req.Path, "/")
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", req.Path, err)
	}
	u.Path, u.RawPath = unescaped, escaped
	q := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Do issues exactly one HTTP request and returns the raw reply. No retries are attempted.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	reqURL, err := c.URL(req)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.creds.Token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Origin", c.origin)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: method, URL: reqURL, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Method: method, URL: reqURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(payload)) > c.maxBody {
		return nil, &TransportError{Method: method, URL: reqURL, Err: fmt.Errorf("response exceeds %d bytes", c.maxBody)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// unwrapURLError drops the *url.Error wrapper so messages do not repeat the method and URL.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
