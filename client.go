package wallet

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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sumup/wallet/signature"
)

// HTTPBackend talks to a [BackendHandler] (or any server speaking the same
// routes) and implements both [Backend] and [ShippingNegotiator].
type HTTPBackend struct {
	baseURL *url.URL
	cfg     clientConfig
}

var (
	_ Backend            = (*HTTPBackend)(nil)
	_ ShippingNegotiator = (*HTTPBackend)(nil)
)

type clientConfig struct {
	httpClient *http.Client
	apiKey     string
	signer     signature.Signer
	userAgent  string
	clock      func() time.Time
	newID      func() string
}

// ClientOption customizes an [HTTPBackend].
type ClientOption func(*clientConfig)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		if c != nil {
			cfg.httpClient = c
		}
	}
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.apiKey = key
	}
}

// WithSigner signs every request body with the Signature and Timestamp headers.
func WithSigner(s signature.Signer) ClientOption {
	return func(cfg *clientConfig) {
		cfg.signer = s
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.userAgent = ua
	}
}

func clientWithClock(fn func() time.Time) ClientOption {
	return func(cfg *clientConfig) {
		cfg.clock = fn
	}
}

// NewHTTPBackend builds an [HTTPBackend] rooted at baseURL.
func NewHTTPBackend(baseURL string, opts ...ClientOption) (*HTTPBackend, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("wallet: parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("wallet: backend url %q must be absolute", baseURL)
	}
	cfg := clientConfig{
		httpClient: http.DefaultClient,
		userAgent:  "sumup-wallet/" + APIVersion,
		clock:      time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &HTTPBackend{baseURL: u, cfg: cfg}, nil
}

// CreateOrder implements [Backend].
func (b *HTTPBackend) CreateOrder(ctx context.Context) (string, error) {
	var resp OrderCreateResponse
	if err := b.do(ctx, http.MethodPost, "/orders", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.OrderID == "" {
		return "", errors.New("wallet: backend returned an empty order id")
	}
	return resp.OrderID, nil
}

// FetchOrderSnapshot implements [Backend].
func (b *HTTPBackend) FetchOrderSnapshot(ctx context.Context, orderID, country string) (*OrderSnapshot, error) {
	var query url.Values
	if country != "" {
		query = url.Values{"country": []string{country}}
	}
	var snap OrderSnapshot
	if err := b.do(ctx, http.MethodGet, orderPath(orderID, ""), query, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ExchangeMerchantValidation implements [Backend].
func (b *HTTPBackend) ExchangeMerchantValidation(ctx context.Context, req MerchantValidationRequest) (string, error) {
	var resp MerchantValidationResponse
	if err := b.do(ctx, http.MethodPost, orderPath(req.OrderID, "merchant_session"), nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Session, nil
}

// AuthorizePayment implements [Backend].
func (b *HTTPBackend) AuthorizePayment(ctx context.Context, orderID string, payment Payment) (*Authorization, error) {
	var auth Authorization
	if err := b.do(ctx, http.MethodPost, orderPath(orderID, "authorize"), nil, payment, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// NegotiateShipping implements [ShippingNegotiator].
func (b *HTTPBackend) NegotiateShipping(ctx context.Context, req ShippingChangeRequest) (*ShippingChangeResult, error) {
	var result ShippingChangeResult
	if err := b.do(ctx, http.MethodPost, orderPath(req.OrderID, "shipping"), nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func orderPath(orderID, action string) string {
	p := "/orders/" + url.PathEscape(orderID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("wallet: marshal %s %s: %w", method, path, err)
		}
	}
	u := b.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wallet: build %s %s: %w", method, path, err)
	}
	h := req.Header
	h.Set("Accept", "application/json")
	h.Set(HeaderAPIVersion, APIVersion)
	h.Set(HeaderRequestID, b.cfg.newID())
	if b.cfg.userAgent != "" {
		h.Set("User-Agent", b.cfg.userAgent)
	}
	if body != nil {
		h.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		h.Set(HeaderIdempotencyKey, b.cfg.newID())
	}
	if b.cfg.apiKey != "" {
		h.Set(HeaderAuthorization, "Bearer "+b.cfg.apiKey)
	}
	if b.cfg.signer != nil {
		if err := signature.SignRequest(ctx, b.cfg.signer, req, body, b.cfg.clock()); err != nil {
			return fmt.Errorf("wallet: sign %s %s: %w", method, path, err)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := b.cfg.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("wallet: decode %s %s: %w", method, path, err)
	}
	return nil
}
