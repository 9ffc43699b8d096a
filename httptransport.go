package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIVersion is sent with every backend request and response.
const APIVersion = "2025-09-12"

// Headers exchanged between [HTTPBackend] and [BackendHandler].
const (
	HeaderAPIVersion     = "API-Version"
	HeaderAuthorization  = "Authorization"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "Request-Id"
	HeaderMerchantDomain = "Merchant-Domain"
	HeaderRetryAfter     = "Retry-After"
)

// maxBodyBytes bounds request and error bodies read by either side.
const maxBodyBytes = 1 << 20

func decodeJSON(body io.ReadCloser, v any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// writeServiceError renders provider errors. Anything that is not an *Error
// is hidden behind a generic processing error.
func writeServiceError(w http.ResponseWriter, err error) {
	var httpErr *Error
	if !errors.As(err, &httpErr) {
		httpErr = NewProcessingError("internal server error")
	}
	writeJSONError(w, httpErr)
}

func writeJSONError(w http.ResponseWriter, payload *Error) {
	if payload == nil {
		payload = NewProcessingError("internal server error")
	}
	if seconds := retryAfterSeconds(payload.RetryAfter()); seconds > 0 {
		w.Header().Set(HeaderRetryAfter, strconv.FormatInt(seconds, 10))
	}
	status := payload.StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set(HeaderAPIVersion, APIVersion)
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// retryAfterSeconds rounds d up to whole seconds.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// decodeErrorResponse turns a non-2xx backend response into an *Error that
// keeps the status code and Retry-After hint.
func decodeErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	opts := []errorOption{WithStatusCode(resp.StatusCode)}
	if d := parseRetryAfter(resp.Header.Get(HeaderRetryAfter)); d > 0 {
		opts = append(opts, WithRetryAfter(d))
	}

	var payload Error
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Type != "" {
		return newError(payload.Type, payload.Code, payload.Message, append(opts, withParam(payload.Param))...)
	}

	message := strings.TrimSpace(string(raw))
	if message == "" {
		message = resp.Status
	}
	typ := InvalidRequest
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		typ = RateLimitExceeded
	case resp.StatusCode == http.StatusServiceUnavailable:
		typ = ServiceUnavailable
	case resp.StatusCode >= http.StatusInternalServerError:
		typ = ProcessingError
	}
	return newError(typ, ErrorCode(typ), fmt.Sprintf("backend returned %s: %s", resp.Status, message), opts...)
}

func withParam(param *string) errorOption {
	return func(er *Error) {
		er.Param = param
	}
}
