package wallet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBackendHandlerSendWebhook(t *testing.T) {
	t.Parallel()

	var received struct {
		body   []byte
		header http.Header
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		received.body = payload
		received.header = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	handler := NewBackendHandler(&stubProvider{}, WithWebhookOptions(WebhookOptions{
		Endpoint:   srv.URL,
		HeaderName: "Merchant_Name-Signature",
		SecretKey:  []byte("super-secret"),
		Client:     srv.Client(),
	}))

	event := OrderApproved{
		Type:                  EventDataTypeOrder,
		OrderID:               "O1",
		Total:                 Amount{CurrencyCode: "USD", Value: "27.00"},
		TransactionIdentifier: "txn_1",
	}
	if err := handler.SendWebhook(context.Background(), event); err != nil {
		t.Fatalf("SendWebhook() error = %v", err)
	}

	if got := received.header.Get("API-Version"); got != APIVersion {
		t.Fatalf("missing API-Version header, got %q", got)
	}
	sig := received.header.Get("Merchant_Name-Signature")
	expectedSig := signWebhookPayload([]byte("super-secret"), received.body)
	if sig != expectedSig {
		t.Fatalf("unexpected signature header %q", sig)
	}

	var decoded struct {
		Type WebhookEventType `json:"type"`
		Data OrderApproved    `json:"data"`
	}
	if err := json.Unmarshal(received.body, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Type != WebhookEventTypeOrderApproved {
		t.Fatalf("unexpected webhook type %s", decoded.Type)
	}
	if decoded.Data.Type != EventDataTypeOrder {
		t.Fatalf("expected data.type order got %s", decoded.Data.Type)
	}
	if decoded.Data.OrderID != event.OrderID || decoded.Data.Total.Value != "27.00" {
		t.Fatalf("unexpected order data %+v", decoded.Data)
	}
}

func TestBackendHandlerSendWebhookErrors(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		handler := NewBackendHandler(&stubProvider{})
		err := handler.SendWebhook(context.Background(), OrderVoided{Type: EventDataTypeOrder, OrderID: "O1"})
		if err == nil || !strings.Contains(err.Error(), "must be configured") {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})

	t.Run("endpoint rejects", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		handler := NewBackendHandler(&stubProvider{}, WithWebhookOptions(WebhookOptions{
			Endpoint:  srv.URL,
			SecretKey: []byte("k"),
			Client:    srv.Client(),
		}))
		err := handler.SendWebhook(context.Background(), OrderVoided{Type: EventDataTypeOrder, OrderID: "O1", Reason: "declined"})
		if err == nil || !strings.Contains(err.Error(), "502") {
			t.Fatalf("expected status error, got %v", err)
		}
	})
}
