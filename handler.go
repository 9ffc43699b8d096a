package wallet

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OrderProvider is implemented by business logic that owns wallet orders.
// It is the server side of the contract [HTTPBackend] speaks.
type OrderProvider interface {
	Backend
	ShippingNegotiator
}

// BackendHandler wires the wallet order routes to an [OrderProvider].
type BackendHandler struct {
	provider OrderProvider
	mux      *http.ServeMux
	cfg      handlerConfig
}

// NewBackendHandler builds a [BackendHandler] backed by net/http's ServeMux.
func NewBackendHandler(provider OrderProvider, opts ...HandlerOption) *BackendHandler {
	if provider == nil {
		panic("wallet: order provider is required")
	}
	cfg := handlerConfig{
		maxClockSkew: 5 * time.Minute,
		clock:        time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.requireSignedRequests && cfg.signatureVerifier == nil {
		panic("wallet: signature verifier required when signed requests are enforced")
	}
	h := &BackendHandler{
		provider: provider,
		mux:      http.NewServeMux(),
		cfg:      cfg,
	}
	middleware := append([]Middleware(nil), cfg.middleware...)
	if mw := newSignatureMiddleware(signatureMiddlewareConfig{
		Verifier:      cfg.signatureVerifier,
		RequireSigned: cfg.requireSignedRequests,
		MaxClockSkew:  cfg.maxClockSkew,
		Clock:         cfg.clock,
	}); mw != nil {
		middleware = append(middleware, mw)
	}
	// Outermost last: authentication runs before signature checks.
	if mw := newAuthenticationMiddleware(cfg.authenticator); mw != nil {
		middleware = append(middleware, mw)
	}
	h.registerRoutes(middleware...)
	return h
}

// ServeHTTP satisfies http.Handler.
func (h *BackendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestCtx := requestContextFromRequest(r)
	if requestCtx.RequestID != "" {
		w.Header().Set(HeaderRequestID, requestCtx.RequestID)
	}
	ctx := contextWithRequestContext(r.Context(), requestCtx)
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// providerError renders an OrderProvider failure. Errors that are not *Error
// are logged since the client only sees a generic processing error.
func (h *BackendHandler) providerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode() >= http.StatusInternalServerError {
			h.cfg.logger.WarnContext(r.Context(), "order provider failed", append(RequestContextFromContext(r.Context()).logAttrs(), "op", op, "error", err)...)
		}
	} else {
		h.cfg.logger.ErrorContext(r.Context(), "order provider failed", append(RequestContextFromContext(r.Context()).logAttrs(), "op", op, "error", err)...)
	}
	writeServiceError(w, err)
}

func (h *BackendHandler) registerRoutes(middleware ...Middleware) {
	h.mux.HandleFunc("POST /orders", applyMiddleware(h.handleCreate, middleware...))
	h.mux.HandleFunc("GET /orders/{id}", applyMiddleware(h.handleSnapshot, middleware...))
	h.mux.HandleFunc("POST /orders/{id}/shipping", applyMiddleware(h.handleShipping, middleware...))
	h.mux.HandleFunc("POST /orders/{id}/merchant_session", applyMiddleware(h.handleMerchantSession, middleware...))
	h.mux.HandleFunc("POST /orders/{id}/authorize", applyMiddleware(h.handleAuthorize, middleware...))
}

func (h *BackendHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	orderID, err := h.provider.CreateOrder(r.Context())
	if err != nil {
		h.providerError(w, r, "create_order", err)
		return
	}
	if orderID == "" {
		writeJSONError(w, NewProcessingError("order provider returned an empty order id"))
		return
	}
	writeJSON(w, http.StatusCreated, OrderCreateResponse{OrderID: orderID})
}

func (h *BackendHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("order_id is required"))
		return
	}
	country := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))
	if country != "" && len(country) != 2 {
		writeJSONError(w, NewInvalidRequestError("country must be a two-letter country code", WithOffendingParam("country")))
		return
	}
	snap, err := h.provider.FetchOrderSnapshot(r.Context(), id, country)
	if err != nil {
		h.providerError(w, r, "fetch_snapshot", err)
		return
	}
	if snap == nil {
		writeJSONError(w, NewNotFoundError("order not found"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *BackendHandler) handleShipping(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("order_id is required"))
		return
	}
	var req ShippingChangeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if req.OrderID == "" {
		req.OrderID = id
	}
	if req.OrderID != id {
		writeJSONError(w, NewInvalidRequestError("order_id does not match the request path", WithOffendingParam("$.order_id")))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	result, err := h.provider.NegotiateShipping(r.Context(), req)
	if err != nil {
		h.providerError(w, r, "negotiate_shipping", err)
		return
	}
	if result == nil {
		result = &ShippingChangeResult{OK: true}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BackendHandler) handleMerchantSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("order_id is required"))
		return
	}
	var req MerchantValidationRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	if req.OrderID == "" {
		req.OrderID = id
	}
	if req.OrderID != id {
		writeJSONError(w, NewInvalidRequestError("order_id does not match the request path", WithOffendingParam("$.order_id")))
		return
	}
	if req.MerchantDomain == "" {
		if rc := RequestContextFromContext(r.Context()); rc != nil {
			req.MerchantDomain = rc.MerchantDomain
		}
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	encoded, err := h.provider.ExchangeMerchantValidation(r.Context(), req)
	if err != nil {
		h.providerError(w, r, "merchant_validation", err)
		return
	}
	writeJSON(w, http.StatusOK, MerchantValidationResponse{Session: encoded})
}

func (h *BackendHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, NewInvalidRequestError("order_id is required"))
		return
	}
	var payment Payment
	if err := decodeJSON(r.Body, &payment); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	payment = NormalizePayment(payment)
	if err := payment.Validate(); err != nil {
		writeJSONError(w, NewInvalidRequestError(err.Error()))
		return
	}
	auth, err := h.provider.AuthorizePayment(r.Context(), id, payment)
	if err != nil {
		h.providerError(w, r, "authorize", err)
		return
	}
	if auth == nil {
		writeJSONError(w, NewProcessingError("order provider returned no authorization"))
		return
	}
	if auth.OrderID == "" {
		auth.OrderID = id
	}
	writeJSON(w, http.StatusOK, auth)
}
