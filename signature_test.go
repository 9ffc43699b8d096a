package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sumup/wallet/signature"
)

const shippingFixture = `{"callback_trigger":"SHIPPING_OPTION","amount":{"value":"27.00","currency_code":"USD"},"selected_shipping_option":{"id":"std","label":"Standard","amount":{"currency_code":"USD","value":"5.00"}}}`

func shippingOKProvider() *stubProvider {
	return &stubProvider{
		shipping: func(ctx context.Context, req ShippingChangeRequest) (*ShippingChangeResult, error) {
			return &ShippingChangeResult{OK: true}, nil
		},
	}
}

func TestSignatureMiddleware(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	signedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	sign := func(t *testing.T, body string, ts time.Time) (string, string) {
		t.Helper()
		canonical, err := signature.CanonicalizeJSONBody([]byte(body))
		if err != nil {
			t.Fatalf("canonicalize: %v", err)
		}
		sig, err := signature.HMACSigner{Key: key}.Sign(context.Background(), ts, canonical)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return sig, ts.Format(time.RFC3339Nano)
	}

	tests := map[string]struct {
		require    bool
		now        time.Time
		headers    func(t *testing.T) (sig, ts string)
		wantStatus int
		wantCode   ErrorCode
	}{
		"valid signature": {
			now: signedAt.Add(30 * time.Second),
			headers: func(t *testing.T) (string, string) {
				return sign(t, shippingFixture, signedAt)
			},
			wantStatus: http.StatusOK,
		},
		"unsigned request allowed when optional": {
			now:        signedAt,
			headers:    func(*testing.T) (string, string) { return "", "" },
			wantStatus: http.StatusOK,
		},
		"unsigned request rejected when required": {
			require:    true,
			now:        signedAt,
			headers:    func(*testing.T) (string, string) { return "", "" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   SignatureRequired,
		},
		"signature for another body": {
			now: signedAt,
			headers: func(t *testing.T) (string, string) {
				return sign(t, `{"callback_trigger":"SHIPPING_ADDRESS"}`, signedAt)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   InvalidSignature,
		},
		"garbage signature": {
			now: signedAt,
			headers: func(*testing.T) (string, string) {
				return "bogus", signedAt.Format(time.RFC3339)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   InvalidSignature,
		},
		"stale timestamp": {
			now: signedAt.Add(10 * time.Minute),
			headers: func(t *testing.T) (string, string) {
				return sign(t, shippingFixture, signedAt)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   StaleTimestamp,
		},
		"signature without timestamp": {
			now:        signedAt,
			headers:    func(*testing.T) (string, string) { return "abc", "" },
			wantStatus: http.StatusBadRequest,
			wantCode:   InvalidSignature,
		},
		"malformed timestamp": {
			now:        signedAt,
			headers:    func(*testing.T) (string, string) { return "abc", "yesterday" },
			wantStatus: http.StatusBadRequest,
			wantCode:   InvalidSignature,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			opts := []HandlerOption{
				WithSignatureVerifier(signature.HMACVerifier{Key: key}),
				handlerWithClock(func() time.Time { return tt.now }),
			}
			if tt.require {
				opts = append(opts, WithRequireSignedRequests())
			}
			handler := NewBackendHandler(shippingOKProvider(), opts...)

			req := httptest.NewRequest(http.MethodPost, "/orders/O1/shipping", bytes.NewReader([]byte(shippingFixture)))
			req.Header.Set("Content-Type", "application/json")
			sig, ts := tt.headers(t)
			if sig != "" {
				req.Header.Set(signature.HeaderSignature, sig)
			}
			if ts != "" {
				req.Header.Set(signature.HeaderTimestamp, ts)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d got %d body=%s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := getErrorCode(rec.Body.Bytes()); got != string(tt.wantCode) {
					t.Fatalf("expected code %s got %s", tt.wantCode, got)
				}
			}
		})
	}
}

func TestSignatureMiddlewareGuardsReadOnlyRoutes(t *testing.T) {
	t.Parallel()

	handler := NewBackendHandler(&stubProvider{
		snapshot: func(ctx context.Context, id, country string) (*OrderSnapshot, error) {
			return &OrderSnapshot{OrderID: id}, nil
		},
	}, WithSignatureVerifier(signature.HMACVerifier{Key: []byte("secret")}), WithRequireSignedRequests())

	req := httptest.NewRequest(http.MethodGet, "/orders/O1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if want, got := string(SignatureRequired), getErrorCode(rec.Body.Bytes()); want != got {
		t.Fatalf("expected code %s got %s", want, got)
	}
}

func getErrorCode(body []byte) string {
	var resp Error
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return string(resp.Code)
}
