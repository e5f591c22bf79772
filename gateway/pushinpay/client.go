package pushinpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/ratelimit"
	"github.com/goliatone/go-checkout/transport"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ProductionBaseURL = "https://api.pushinpay.com.br/api"
	SandboxBaseURL    = "https://api-sandbox.pushinpay.com.br/api"

	// MaxSplitRatio caps the platform share of a charge.
	MaxSplitRatio = 0.5
)

// BaseURL returns the API root for environment. Unknown values use sandbox.
func BaseURL(environment string) string {
	if strings.EqualFold(strings.TrimSpace(environment), core.GatewayEnvironmentProduction) {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

type SplitRule struct {
	Value     int64  `json:"value"`
	AccountID string `json:"account_id"`
}

type CreateChargeRequest struct {
	Token       string
	Environment string
	ValueCents  int64
	WebhookURL  string
	SplitRules  []SplitRule
}

type Charge struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Value        int64  `json:"value"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	EndToEndID   string `json:"end_to_end_id,omitempty"`
	PayerName    string `json:"payer_name,omitempty"`
}

// RateLimiter tracks gateway throttling per account and bucket.
type RateLimiter interface {
	BeforeCall(ctx context.Context, key ratelimit.Key) error
	AfterCall(ctx context.Context, key ratelimit.Key, statusCode int, headers map[string]string) error
}

type Client struct {
	http     *transport.RESTAdapter
	timeout  time.Duration
	baseURLs map[string]string
	limiter  RateLimiter
}

type ClientOption func(*Client)

// WithBaseURL overrides the API root of one environment.
func WithBaseURL(environment string, baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURLs[strings.ToLower(strings.TrimSpace(environment))] = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRateLimiter makes the client back off locally while an account is
// throttled by the gateway.
func WithRateLimiter(limiter RateLimiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func NewClient(adapter *transport.RESTAdapter, opts ...ClientOption) *Client {
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	client := &Client{
		http:    adapter,
		timeout: 15 * time.Second,
		baseURLs: map[string]string{
			core.GatewayEnvironmentProduction: ProductionBaseURL,
			core.GatewayEnvironmentSandbox:    SandboxBaseURL,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

func (c *Client) CreateCharge(ctx context.Context, req CreateChargeRequest) (Charge, error) {
	if c == nil || c.http == nil {
		return Charge{}, core.InternalError(nil, "pushinpay: client is not configured")
	}
	if strings.TrimSpace(req.Token) == "" {
		return Charge{}, core.ValidationError("token", "gateway token is required")
	}
	if req.ValueCents < core.MinOrderAmountCents {
		return Charge{}, core.ValidationError("value", fmt.Sprintf("minimum charge is %d cents", core.MinOrderAmountCents))
	}

	body := map[string]any{
		"value":       req.ValueCents,
		"webhook_url": strings.TrimSpace(req.WebhookURL),
	}
	if len(req.SplitRules) > 0 {
		body["split_rules"] = req.SplitRules
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Charge{}, core.InternalError(err, "pushinpay: encode charge request")
	}

	res, err := c.do(ctx, req.Token, "cashin", transport.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL(req.Environment) + "/pix/cashIn",
		Headers: authHeaders(req.Token),
		Body:    payload,
		Timeout: c.timeout,
	})
	if err != nil {
		return Charge{}, err
	}
	if !res.Success() {
		return Charge{}, responseError("create charge", res)
	}

	var charge Charge
	if err := json.Unmarshal(res.Body, &charge); err != nil {
		return Charge{}, core.GatewayError(err, "pushinpay: decode charge response", nil)
	}
	if strings.TrimSpace(charge.ID) == "" {
		return Charge{}, core.GatewayError(nil, "pushinpay: charge response has no id", nil)
	}
	charge.QRCodeBase64 = qrDataURL(charge.QRCodeBase64)
	return charge, nil
}

func (c *Client) GetCharge(ctx context.Context, token string, environment string, chargeID string) (Charge, error) {
	if c == nil || c.http == nil {
		return Charge{}, core.InternalError(nil, "pushinpay: client is not configured")
	}
	chargeID = strings.TrimSpace(chargeID)
	if chargeID == "" {
		return Charge{}, core.ValidationError("pix_id", "charge id is required")
	}
	res, err := c.do(ctx, token, "consult", transport.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL(environment) + "/pix/consult/" + url.PathEscape(chargeID),
		Headers: authHeaders(token),
		Timeout: c.timeout,
	})
	if err != nil {
		return Charge{}, err
	}
	if !res.Success() {
		return Charge{}, responseError("consult charge", res)
	}
	var charge Charge
	if err := json.Unmarshal(res.Body, &charge); err != nil {
		return Charge{}, core.GatewayError(err, "pushinpay: decode consult response", nil)
	}
	if charge.ID == "" {
		charge.ID = chargeID
	}
	return charge, nil
}

func (c *Client) do(ctx context.Context, token string, bucket string, req transport.Request) (transport.Response, error) {
	if c.limiter == nil {
		return c.http.Do(ctx, req)
	}
	key := ratelimit.Key{Gateway: Name, Account: ratelimit.AccountFingerprint(token), Bucket: bucket}
	if err := c.limiter.BeforeCall(ctx, key); err != nil {
		var throttled ratelimit.ThrottledError
		if errors.As(err, &throttled) {
			return transport.Response{}, throttled.ToError()
		}
		return transport.Response{}, err
	}
	res, err := c.http.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if err := c.limiter.AfterCall(ctx, key, res.StatusCode, res.Headers); err != nil {
		return res, core.InternalError(err, "pushinpay: record rate limit state")
	}
	return res, nil
}

// ComputeSplit returns the platform split for a charge. No rule is produced
// without an account or a positive fee.
func ComputeSplit(valueCents int64, feePercent float64, accountID string) ([]SplitRule, error) {
	platformValue := int64(math.Round(float64(valueCents) * feePercent / 100))
	if float64(platformValue) > float64(valueCents)*MaxSplitRatio {
		return nil, core.ValidationError("split_rules", "split cannot exceed 50% of the charge value")
	}
	accountID = strings.TrimSpace(accountID)
	if platformValue <= 0 || accountID == "" {
		return nil, nil
	}
	return []SplitRule{{Value: platformValue, AccountID: accountID}}, nil
}

func (c *Client) baseURL(environment string) string {
	key := strings.ToLower(strings.TrimSpace(environment))
	if base, ok := c.baseURLs[key]; ok && base != "" {
		return base
	}
	return c.baseURLs[core.GatewayEnvironmentSandbox]
}

func authHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(token),
		"Accept":        "application/json",
		"Content-Type":  "application/json",
	}
}

func responseError(operation string, res transport.Response) error {
	metadata := map[string]any{
		"status_code": res.StatusCode,
		"body":        truncate(string(res.Body), 200),
	}
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return core.NewError("pushinpay: "+operation+": gateway token rejected", goerrors.CategoryAuth, core.ErrorUnauthorized, metadata)
	case res.StatusCode == http.StatusTooManyRequests:
		return core.NewError("pushinpay: "+operation+": rate limited", goerrors.CategoryRateLimit, core.ErrorGatewayThrottled, metadata)
	case res.StatusCode >= http.StatusInternalServerError:
		return core.GatewayError(nil, "pushinpay: "+operation+": gateway unavailable", metadata)
	default:
		return core.NewError("pushinpay: "+operation+": request rejected", goerrors.CategoryOperation, core.ErrorGatewayFailure, metadata)
	}
}

func qrDataURL(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), "")
	if cleaned == "" || strings.HasPrefix(cleaned, "data:image/") {
		return cleaned
	}
	return "data:image/png;base64," + cleaned
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
