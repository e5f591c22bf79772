package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultUserAgent = "go-checkout"

	defaultClientTimeout       = 30 * time.Second
	defaultBodyLimit     int64 = 1 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one outbound call. Timeout bounds this call only; the
// adapter's client timeout still applies.
type Request struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Truncated  bool
	Duration   time.Duration
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Header looks up a response header ignoring case.
func (r Response) Header(name string) string {
	if value, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok {
		return value
	}
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// RESTAdapter is the HTTP client shared by the gateway client, the webhook
// dispatcher and the forwarders.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{"User-Agent": DefaultUserAgent},
		MaxResponseBodyBytes: defaultBodyLimit,
	}
}

// Do executes req. A non-2xx status is not an error; only failures to
// build, send or read the request are.
func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, core.NewError("transport: http client is not configured",
			goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.build(ctx, req)
	if err != nil {
		return Response{}, err
	}
	target := map[string]any{"method": httpReq.Method, "url": redactedURL(httpReq.URL)}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return Response{}, core.WrapError(err, goerrors.CategoryExternal,
			"transport: request failed", core.ErrorGatewayFailure, target)
	}
	defer httpRes.Body.Close()

	limit := req.MaxResponseBodyBytes
	if limit <= 0 {
		limit = a.MaxResponseBodyBytes
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	body, truncated, err := readLimited(httpRes.Body, limit)
	if err != nil {
		target["status_code"] = httpRes.StatusCode
		return Response{}, core.WrapError(err, goerrors.CategoryExternal,
			"transport: read response body", core.ErrorGatewayFailure, target)
	}

	headers := make(map[string]string, len(httpRes.Header))
	for key, values := range httpRes.Header {
		headers[key] = strings.Join(values, ",")
	}
	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    headers,
		Body:       body,
		Truncated:  truncated,
		Duration:   time.Since(startedAt),
	}, nil
}

func (a *RESTAdapter) build(ctx context.Context, req Request) (*http.Request, error) {
	rawURL := strings.TrimSpace(req.URL)
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, core.WrapError(err, goerrors.CategoryBadInput,
			"transport: invalid request url", core.ErrorBadInput, map[string]any{"url": rawURL})
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				query.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = query.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryBadInput,
			"transport: build request", core.ErrorBadInput, map[string]any{"method": method})
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	return httpReq, nil
}

func setHeaders(dst http.Header, src map[string]string) {
	for key, value := range src {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// redactedURL drops the query string, which may carry tokens, from logged
// and wrapped error metadata.
func redactedURL(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	return clean.String()
}

// StatusError describes a non-2xx response for callers that treat it as a
// failure.
func StatusError(res Response) error {
	return fmt.Errorf("transport: unexpected status %d", res.StatusCode)
}
