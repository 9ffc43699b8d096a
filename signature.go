package wallet

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sumup/wallet/signature"
)

type signatureMiddlewareConfig struct {
	Verifier      signature.Verifier
	RequireSigned bool
	MaxClockSkew  time.Duration
	Clock         func() time.Time
}

// signedHeaders reads the Signature and Timestamp pair. signed is false when
// both are absent.
func signedHeaders(r *http.Request) (sig string, ts time.Time, signed bool, apiErr *Error) {
	sig = strings.TrimSpace(r.Header.Get(signature.HeaderSignature))
	raw := strings.TrimSpace(r.Header.Get(signature.HeaderTimestamp))
	switch {
	case sig == "" && raw == "":
		return "", time.Time{}, false, nil
	case sig == "" || raw == "":
		return "", time.Time{}, true, NewHTTPError(http.StatusBadRequest, InvalidRequest, InvalidSignature, "Signature and Timestamp headers must both be provided")
	}
	ts, err := signature.ParseTimestamp(raw)
	if err != nil {
		return "", time.Time{}, true, NewHTTPError(http.StatusBadRequest, InvalidRequest, InvalidSignature, "Timestamp must be RFC3339", WithOffendingParam(signature.HeaderTimestamp))
	}
	return sig, ts.UTC(), true, nil
}

// verify checks a signed request. The body is buffered so handlers can still
// decode it.
func (cfg signatureMiddlewareConfig) verify(r *http.Request, sig string, ts time.Time) *Error {
	if cfg.MaxClockSkew > 0 {
		if skew := signature.AbsDuration(cfg.Clock().Sub(ts)); skew > cfg.MaxClockSkew {
			return NewHTTPError(http.StatusUnauthorized, InvalidRequest, StaleTimestamp, fmt.Sprintf("timestamp skew exceeds %s", cfg.MaxClockSkew))
		}
	}
	raw, err := signature.ReadAndBufferBody(r)
	if err != nil {
		return NewInvalidRequestError("unable to read request body")
	}
	canonicalBody, err := signature.CanonicalizeJSONBody(raw)
	if err != nil {
		return NewInvalidRequestError("request body must be valid JSON")
	}
	material := signature.Material{
		Signature:     sig,
		Timestamp:     ts,
		CanonicalBody: canonicalBody,
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Headers:       r.Header.Clone(),
	}
	if err := cfg.Verifier.Verify(r.Context(), material); err != nil {
		return NewHTTPError(http.StatusUnauthorized, InvalidRequest, InvalidSignature, "signature verification failed")
	}
	return nil
}

// newSignatureMiddleware rejects backend requests whose canonical JSON body
// does not match the Signature header.
func newSignatureMiddleware(cfg signatureMiddlewareConfig) Middleware {
	if cfg.Verifier == nil {
		return nil
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sig, ts, signed, apiErr := signedHeaders(r)
			switch {
			case apiErr != nil:
			case !signed && cfg.RequireSigned:
				apiErr = NewHTTPError(http.StatusUnauthorized, InvalidRequest, SignatureRequired, "Signature and Timestamp headers are required")
			case signed:
				apiErr = cfg.verify(r, sig, ts)
			}
			if apiErr != nil {
				writeJSONError(w, apiErr)
				return
			}
			next(w, r)
		}
	}
}
