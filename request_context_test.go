package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestContextFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set(HeaderAuthorization, "Bearer api_key")
	req.Header.Set("Accept-Language", " en-US ")
	req.Header.Set("User-Agent", "wallet-test/1.0")
	req.Header.Set(HeaderIdempotencyKey, "idem-123")
	req.Header.Set(HeaderRequestID, "req-123")
	req.Header.Set(HeaderMerchantDomain, "shop.example.com")
	req.Header.Set("Signature", "sig-123")
	req.Header.Set("Timestamp", "2025-01-02T03:04:05Z")
	req.Header.Set(HeaderAPIVersion, "2025-01-01")

	got := requestContextFromRequest(req)
	want := RequestContext{
		AcceptLanguage: "en-US",
		UserAgent:      "wallet-test/1.0",
		IdempotencyKey: "idem-123",
		RequestID:      "req-123",
		MerchantDomain: "shop.example.com",
		Signature:      "sig-123",
		Timestamp:      "2025-01-02T03:04:05Z",
		APIVersion:     "2025-01-01",
	}
	if got == nil || *got != want {
		t.Fatalf("requestContextFromRequest() = %+v, want %+v", got, want)
	}
}

func TestRequestContextRoundTrip(t *testing.T) {
	t.Parallel()

	requestCtx := &RequestContext{MerchantID: "merchant_1"}
	ctx := contextWithRequestContext(context.Background(), requestCtx)
	if got := RequestContextFromContext(ctx); got != requestCtx {
		t.Fatalf("expected the stored request context, got %+v", got)
	}
	if RequestContextFromContext(context.Background()) != nil {
		t.Fatalf("expected nil when request context not set")
	}
	if attrs := (*RequestContext)(nil).logAttrs(); attrs != nil {
		t.Fatalf("expected no attrs for nil context, got %v", attrs)
	}
}

func TestBackendHandlerEchoesRequestID(t *testing.T) {
	t.Parallel()

	handler := NewBackendHandler(createOKProvider())
	req := newCreateOrderHTTPRequest(t)
	req.Header.Set(HeaderRequestID, "req-789")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(HeaderRequestID); got != "req-789" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}
