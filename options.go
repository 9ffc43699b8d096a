package wallet

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumup/wallet/signature"
)

const defaultMerchantName = "Total"

var (
	defaultSupportedNetworks    = []string{"visa", "masterCard", "amex", "discover"}
	defaultMerchantCapabilities = []string{"supports3DS"}
)

type config struct {
	country              string
	currency             string
	merchantDomain       string
	supportedNetworks    []string
	merchantCapabilities []string
	shippingNegotiator   ShippingNegotiator
	strictZeroAmounts    bool
	sessionTimeout       time.Duration
	fundingEligibility   FundingEligibility
	checkEligibility     bool
	onClick              ClickFunc
	onApprove            ApproveFunc
	onCancel             CancelFunc
	onError              ErrorFunc
	logger               *slog.Logger
	tracerProvider       trace.TracerProvider
	clock                func() time.Time
}

// Option customizes the coordinator behavior.
type Option func(*config)

func defaultConfig() config {
	return config{
		country:              "US",
		supportedNetworks:    defaultSupportedNetworks,
		merchantCapabilities: defaultMerchantCapabilities,
		logger:               slog.Default(),
		tracerProvider:       otel.GetTracerProvider(),
		clock:                time.Now,
	}
}

// WithCountry sets the buyer country used for snapshot lookups and the sheet request.
func WithCountry(country string) Option {
	return func(cfg *config) {
		cfg.country = strings.ToUpper(country)
	}
}

// WithCurrency sets the fallback currency when the snapshot carries none.
func WithCurrency(currency string) Option {
	return func(cfg *config) {
		cfg.currency = strings.ToUpper(currency)
	}
}

// WithMerchantDomain sets the domain forwarded with merchant validation.
func WithMerchantDomain(domain string) Option {
	return func(cfg *config) {
		cfg.merchantDomain = domain
	}
}

// WithSupportedNetworks overrides the card networks offered in the sheet.
func WithSupportedNetworks(networks ...string) Option {
	return func(cfg *config) {
		cfg.supportedNetworks = append([]string(nil), networks...)
	}
}

// WithMerchantCapabilities overrides the merchant capabilities offered in the sheet.
func WithMerchantCapabilities(capabilities ...string) Option {
	return func(cfg *config) {
		cfg.merchantCapabilities = append([]string(nil), capabilities...)
	}
}

// WithShippingNegotiator enables backend negotiation of shipping changes.
func WithShippingNegotiator(n ShippingNegotiator) Option {
	return func(cfg *config) {
		cfg.shippingNegotiator = n
	}
}

// WithStrictZeroAmounts treats a "0.00" tax or subtotal reported after a
// shipping change as a real zero instead of "unchanged".
func WithStrictZeroAmounts() Option {
	return func(cfg *config) {
		cfg.strictZeroAmounts = true
	}
}

// WithSessionTimeout closes a session that stays open longer than d.
func WithSessionTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("wallet: session timeout must be positive")
	}
	return func(cfg *config) {
		cfg.sessionTimeout = d
	}
}

// WithFundingEligibility gates Start on the eligibility reported for the
// buyer. An ineligible buyer is treated like a declined trigger and the click
// hook is not called.
func WithFundingEligibility(eligibility FundingEligibility) Option {
	return func(cfg *config) {
		cfg.fundingEligibility = eligibility
		cfg.checkEligibility = true
	}
}

// WithOnClick sets the trigger validation hook.
func WithOnClick(fn ClickFunc) Option {
	return func(cfg *config) {
		cfg.onClick = fn
	}
}

// WithOnApprove sets the hook invoked after a payment is approved.
func WithOnApprove(fn ApproveFunc) Option {
	return func(cfg *config) {
		cfg.onApprove = fn
	}
}

// WithOnCancel sets the hook invoked when the buyer dismisses the sheet.
func WithOnCancel(fn CancelFunc) Option {
	return func(cfg *config) {
		cfg.onCancel = fn
	}
}

// WithOnError sets the hook receiving fatal session errors.
func WithOnError(fn ErrorFunc) Option {
	return func(cfg *config) {
		cfg.onError = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for session spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		if tp != nil {
			cfg.tracerProvider = tp
		}
	}
}

// withClock provides deterministic time in tests.
func withClock(fn func() time.Time) Option {
	return func(cfg *config) {
		cfg.clock = fn
	}
}

type handlerConfig struct {
	signatureVerifier     signature.Verifier
	maxClockSkew          time.Duration
	requireSignedRequests bool
	middleware            []Middleware
	authenticator         Authenticator
	webhook               *webhookConfig
	logger                *slog.Logger
	clock                 func() time.Time
}

// Middleware wraps a route handler.
type Middleware func(http.HandlerFunc) http.HandlerFunc

func applyMiddleware(h http.HandlerFunc, middleware ...Middleware) http.HandlerFunc {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// HandlerOption customizes the [BackendHandler] behavior.
type HandlerOption func(*handlerConfig)

// WithSignatureVerifier enables canonical JSON signature enforcement.
func WithSignatureVerifier(verifier signature.Verifier) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.signatureVerifier = verifier
	}
}

// WithMaxClockSkew sets the tolerated absolute difference between the
// Timestamp header and the server clock when verifying signed requests.
func WithMaxClockSkew(skew time.Duration) HandlerOption {
	if skew <= 0 {
		panic("wallet: max clock skew must be positive")
	}
	return func(cfg *handlerConfig) {
		cfg.maxClockSkew = skew
	}
}

// WithRequireSignedRequests enforces that every request carries Signature and
// Timestamp headers when a verifier is configured.
func WithRequireSignedRequests() HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.requireSignedRequests = true
	}
}

// WithMiddleware appends custom middleware in the order provided.
func WithMiddleware(mw ...Middleware) HandlerOption {
	return func(cfg *handlerConfig) {
		for _, m := range mw {
			if m == nil {
				continue
			}
			cfg.middleware = append(cfg.middleware, m)
		}
	}
}

// WithAuthenticator enables Authorization header API key validation.
func WithAuthenticator(auth Authenticator) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.authenticator = auth
	}
}

// WithHandlerLogger sets the logger used for provider failures.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(cfg *handlerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// handlerWithClock provides deterministic time in tests.
func handlerWithClock(fn func() time.Time) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.clock = fn
	}
}
