package wallet

import "context"

// Backend is the order/checkout backend the coordinator negotiates with.
type Backend interface {
	CreateOrder(ctx context.Context) (string, error)
	FetchOrderSnapshot(ctx context.Context, orderID, country string) (*OrderSnapshot, error)
	ExchangeMerchantValidation(ctx context.Context, req MerchantValidationRequest) (string, error)
	AuthorizePayment(ctx context.Context, orderID string, payment Payment) (*Authorization, error)
}

// ShippingNegotiator validates shipping changes against backend business rules.
// Without one the coordinator answers shipping events from cached totals.
type ShippingNegotiator interface {
	NegotiateShipping(ctx context.Context, req ShippingChangeRequest) (*ShippingChangeResult, error)
}

// ShippingNegotiatorFunc lifts bare functions into [ShippingNegotiator].
type ShippingNegotiatorFunc func(ctx context.Context, req ShippingChangeRequest) (*ShippingChangeResult, error)

// NegotiateShipping delegates to the wrapped function.
func (f ShippingNegotiatorFunc) NegotiateShipping(ctx context.Context, req ShippingChangeRequest) (*ShippingChangeResult, error) {
	return f(ctx, req)
}

// SheetLauncher opens native payment sheets.
type SheetLauncher interface {
	Open(ctx context.Context, version int, req PaymentRequest) (Sheet, error)
}

// SheetLauncherFunc lifts bare functions into [SheetLauncher].
type SheetLauncherFunc func(ctx context.Context, version int, req PaymentRequest) (Sheet, error)

// Open delegates to the wrapped function.
func (f SheetLauncherFunc) Open(ctx context.Context, version int, req PaymentRequest) (Sheet, error) {
	return f(ctx, version, req)
}

// Listener receives sheet events.
type Listener func(ctx context.Context, ev Event)

// Sheet is a handle on an opened payment sheet.
//
// Events of one kind are expected to arrive serially; events of different
// kinds may arrive concurrently.
type Sheet interface {
	Begin() error
	AddEventListener(kind EventKind, l Listener) (unsubscribe func(), err error)
	CompleteMerchantValidation(session MerchantSession) error
	CompletePaymentMethodSelection(update Update) error
	CompleteShippingMethodSelection(update Update) error
	CompleteShippingContactSelection(update Update) error
	CompletePayment(result PaymentResult) error
	Abort() error
}

// Actions is handed to the approval hook.
type Actions struct {
	// Restart opens a brand-new session once the approved one has closed.
	Restart func(ctx context.Context) error
}

// ClickFunc decides whether a trigger may open the sheet.
type ClickFunc func(ctx context.Context) (bool, error)

// ApproveFunc is invoked once per approved payment.
type ApproveFunc func(ctx context.Context, data ApprovalData, actions Actions) error

// CancelFunc is invoked when the buyer dismisses the sheet.
type CancelFunc func(ctx context.Context)

// ErrorFunc receives every fatal session error after the session closed.
type ErrorFunc func(ctx context.Context, err error)
