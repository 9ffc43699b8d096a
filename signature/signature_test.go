package signature

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHMACSignerMatchesVerifier(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ts := time.Date(2025, 9, 25, 10, 30, 0, 123000000, time.UTC)
	body := []byte(`{"b":"y", "a":"x"}`)

	req := httptest.NewRequest(http.MethodPost, "/orders/O1/authorize", bytes.NewReader(body))
	if err := SignRequest(context.Background(), HMACSigner{Key: key}, req, body, ts); err != nil {
		t.Fatalf("SignRequest() error = %v", err)
	}

	parsed, err := ParseTimestamp(req.Header.Get(HeaderTimestamp))
	if err != nil {
		t.Fatalf("ParseTimestamp() error = %v", err)
	}
	if !parsed.Equal(ts) {
		t.Fatalf("timestamp round trip = %s, want %s", parsed, ts)
	}
	canonical, err := CanonicalizeJSONBody(body)
	if err != nil {
		t.Fatalf("CanonicalizeJSONBody() error = %v", err)
	}
	if string(canonical) != `{"a":"x","b":"y"}` {
		t.Fatalf("unexpected canonical body %s", canonical)
	}
	material := Material{Signature: req.Header.Get(HeaderSignature), Timestamp: parsed, CanonicalBody: canonical}
	if err := (HMACVerifier{Key: key}).Verify(context.Background(), material); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := (HMACVerifier{Key: []byte("other")}).Verify(context.Background(), material); err == nil {
		t.Fatalf("expected verification to fail with another key")
	}
}

func TestCanonicalizeJSONBody(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in      string
		want    string
		wantErr bool
	}{
		"empty body":      {in: "", want: "null"},
		"whitespace only": {in: "  \n", want: "null"},
		"sorted keys":     {in: `{"z":{"y":"2","x":true},"a":["c","b"]}`, want: `{"a":["c","b"],"z":{"x":true,"y":"2"}}`},
		"invalid json":    {in: `{`, wantErr: true},
		"two documents":   {in: `{} {}`, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalizeJSONBody([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalizeJSONBody() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestSignerRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := (HMACSigner{}).Sign(context.Background(), time.Now(), []byte("null")); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
