package wallet

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Authenticator resolves the merchant account an API key belongs to. The
// returned merchant ID is exposed to the [OrderProvider] through
// [RequestContext.MerchantID].
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (merchantID string, err error)
}

// AuthenticatorFunc lifts bare functions into [Authenticator].
type AuthenticatorFunc func(ctx context.Context, apiKey string) (string, error)

// Authenticate resolves the API key using the wrapped function.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, apiKey string) (string, error) {
	return f(ctx, apiKey)
}

// bearerToken extracts the API key from an Authorization header value.
func bearerToken(header string) (string, *Error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", NewHTTPError(http.StatusUnauthorized, InvalidRequest, MissingAuthorization, "Authorization header is required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", NewHTTPError(http.StatusUnauthorized, InvalidRequest, InvalidAuthorization, "Authorization header must be in the format 'Bearer <api_key>'")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", NewHTTPError(http.StatusUnauthorized, InvalidRequest, InvalidAuthorization, "API key is required")
	}
	return token, nil
}

// authenticationError maps an Authenticator failure onto the wire. Structured
// errors pass through; a cancelled lookup is reported as unavailable.
func authenticationError(err error) *Error {
	var httpErr *Error
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewServiceUnavailableError("authentication timed out")
	default:
		return NewHTTPError(http.StatusUnauthorized, InvalidRequest, InvalidAuthorization, "invalid API key")
	}
}

func newAuthenticationMiddleware(auth Authenticator) Middleware {
	if auth == nil {
		return nil
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			apiKey, apiErr := bearerToken(r.Header.Get(HeaderAuthorization))
			if apiErr != nil {
				writeJSONError(w, apiErr)
				return
			}
			merchantID, err := auth.Authenticate(r.Context(), apiKey)
			if err != nil {
				writeJSONError(w, authenticationError(err))
				return
			}
			if rc := RequestContextFromContext(r.Context()); rc != nil {
				rc.MerchantID = merchantID
			}
			next(w, r)
		}
	}
}
