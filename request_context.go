package wallet

import (
	"context"
	"net/http"
	"strings"

	"github.com/sumup/wallet/signature"
)

// RequestContext carries the metadata a [BackendHandler] request arrived
// with. Providers read it with [RequestContextFromContext]. The API key
// itself is never retained; MerchantID holds what it resolved to.
type RequestContext struct {
	// Merchant account resolved by the configured [Authenticator]. Empty when
	// the handler runs without one.
	MerchantID string
	// Example: en-US
	AcceptLanguage string
	// Example: sumup-wallet/2025-09-12
	UserAgent string
	// Set by [HTTPBackend] on every POST; providers should dedupe order
	// mutations on it.
	IdempotencyKey string
	// Unique per request, echoed back in the response headers.
	RequestID string
	// Storefront domain the sheet was opened on, used when a merchant
	// validation body omits merchant_domain.
	MerchantDomain string
	// Raw signature headers. Verified before the provider runs when a
	// [signature.Verifier] is configured.
	Signature string
	Timestamp string
	// Example: 2025-09-12
	APIVersion string
}

func requestContextFromRequest(r *http.Request) *RequestContext {
	get := func(name string) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
	return &RequestContext{
		AcceptLanguage: get("Accept-Language"),
		UserAgent:      get("User-Agent"),
		IdempotencyKey: get(HeaderIdempotencyKey),
		RequestID:      get(HeaderRequestID),
		MerchantDomain: get(HeaderMerchantDomain),
		Signature:      get(signature.HeaderSignature),
		Timestamp:      get(signature.HeaderTimestamp),
		APIVersion:     get(HeaderAPIVersion),
	}
}

// logAttrs identifies the request in handler logs.
func (rc *RequestContext) logAttrs() []any {
	if rc == nil {
		return nil
	}
	attrs := []any{"request_id", rc.RequestID}
	if rc.MerchantID != "" {
		attrs = append(attrs, "merchant_id", rc.MerchantID)
	}
	if rc.IdempotencyKey != "" {
		attrs = append(attrs, "idempotency_key", rc.IdempotencyKey)
	}
	return attrs
}

type requestContextKey struct{}

func contextWithRequestContext(ctx context.Context, requestCtx *RequestContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if requestCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, requestContextKey{}, requestCtx)
}

// RequestContextFromContext returns the metadata stored by [BackendHandler],
// or nil outside a handler call.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	requestCtx, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return requestCtx
}
