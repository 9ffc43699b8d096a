package wallet

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WebhookEventType enumerates the supported order webhook events.
type WebhookEventType string

const (
	WebhookEventTypeOrderApproved WebhookEventType = "order_approved"
	WebhookEventTypeOrderVoided   WebhookEventType = "order_voided"
)

// EventDataType labels the payload for a webhook event.
type EventDataType string

const (
	EventDataTypeOrder EventDataType = "order"
)

// EventData is implemented by webhook payloads.
type EventData interface {
	eventType() WebhookEventType
}

// OrderApproved is emitted once the backend approved the wallet payment.
type OrderApproved struct {
	Type                  EventDataType `json:"type"`
	OrderID               string        `json:"order_id"`
	Total                 Amount        `json:"total"`
	TransactionIdentifier string        `json:"transaction_identifier,omitempty"`
}

func (OrderApproved) eventType() WebhookEventType { return WebhookEventTypeOrderApproved }

// OrderVoided is emitted when an order is abandoned or its authorization declined.
type OrderVoided struct {
	Type    EventDataType `json:"type"`
	OrderID string        `json:"order_id"`
	Reason  string        `json:"reason,omitempty"`
}

func (OrderVoided) eventType() WebhookEventType { return WebhookEventTypeOrderVoided }

type webhookEvent struct {
	Type WebhookEventType `json:"type"`
	Data any              `json:"data"`
}

// WebhookOptions configures outbound order webhooks.
type WebhookOptions struct {
	// Endpoint receiving the POSTed events.
	Endpoint string
	// HeaderName carries the signature. Defaults to "Wallet-Signature".
	HeaderName string
	// SecretKey signs the payload with HMAC-SHA256.
	SecretKey []byte
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

type webhookConfig struct {
	endpoint string
	header   string
	secret   []byte
	client   *http.Client
}

// WithWebhookOptions enables [BackendHandler.SendWebhook].
func WithWebhookOptions(opts WebhookOptions) HandlerOption {
	if opts.Endpoint == "" {
		panic("wallet: webhook endpoint is required")
	}
	if len(opts.SecretKey) == 0 {
		panic("wallet: webhook secret key is required")
	}
	cfg := &webhookConfig{
		endpoint: opts.Endpoint,
		header:   opts.HeaderName,
		secret:   append([]byte(nil), opts.SecretKey...),
		client:   opts.Client,
	}
	if cfg.header == "" {
		cfg.header = "Wallet-Signature"
	}
	if cfg.client == nil {
		cfg.client = http.DefaultClient
	}
	return func(hc *handlerConfig) {
		hc.webhook = cfg
	}
}

// SendWebhook posts webhook events to the endpoint configured via [WithWebhookOptions].
func (h *BackendHandler) SendWebhook(ctx context.Context, data EventData) error {
	if h.cfg.webhook == nil {
		return errors.New("wallet: webhook options must be configured")
	}
	if data == nil {
		return errors.New("wallet: webhook data is required")
	}
	body, err := json.Marshal(webhookEvent{
		Type: data.eventType(),
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("wallet: marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.webhook.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wallet: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIVersion, APIVersion)
	req.Header.Set(h.cfg.webhook.header, signWebhookPayload(h.cfg.webhook.secret, body))

	resp, err := h.cfg.webhook.client.Do(req)
	if err != nil {
		return fmt.Errorf("wallet: send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("wallet: webhook endpoint %s returned %s: %s", h.cfg.webhook.endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}

func signWebhookPayload(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
