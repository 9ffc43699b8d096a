package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeSheet struct {
	mu          sync.Mutex
	request     PaymentRequest
	version     int
	listeners   map[EventKind]Listener
	began       bool
	aborted     int
	unsubscribe int

	// failListen makes AddEventListener fail for that kind.
	failListen EventKind
	beginErr   error

	merchantSessions []MerchantSession
	paymentMethod    []Update
	shippingMethod   []Update
	shippingContact  []Update
	payments         []PaymentResult
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{listeners: make(map[EventKind]Listener)}
}

func (f *fakeSheet) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return f.beginErr
	}
	f.began = true
	return nil
}

func (f *fakeSheet) AddEventListener(kind EventKind, l Listener) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == f.failListen {
		return nil, errSheetUnavailable
	}
	f.listeners[kind] = l
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, kind)
		f.unsubscribe++
	}, nil
}

func (f *fakeSheet) CompleteMerchantValidation(session MerchantSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merchantSessions = append(f.merchantSessions, session)
	return nil
}

func (f *fakeSheet) CompletePaymentMethodSelection(update Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentMethod = append(f.paymentMethod, update)
	return nil
}

func (f *fakeSheet) CompleteShippingMethodSelection(update Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shippingMethod = append(f.shippingMethod, update)
	return nil
}

func (f *fakeSheet) CompleteShippingContactSelection(update Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shippingContact = append(f.shippingContact, update)
	return nil
}

func (f *fakeSheet) CompletePayment(result PaymentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, result)
	return nil
}

func (f *fakeSheet) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted++
	return nil
}

// emit delivers an event the way the native sheet would.
func (f *fakeSheet) emit(t *testing.T, kind EventKind, payload any) {
	t.Helper()
	ev, err := NewEvent(kind, payload)
	require.NoError(t, err)
	f.mu.Lock()
	l := f.listeners[kind]
	f.mu.Unlock()
	if l == nil {
		return
	}
	l(context.Background(), ev)
}

func (f *fakeSheet) completions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.merchantSessions) + len(f.paymentMethod) + len(f.shippingMethod) + len(f.shippingContact) + len(f.payments)
}

type fakeBackend struct {
	mu         sync.Mutex
	creates    int
	snapshots  int
	countries  []string
	payments   []Payment
	validation []MerchantValidationRequest

	snapshot  func(call int) (*OrderSnapshot, error)
	createErr error
	approve   bool
	authErr   error
	session   string

	// authStarted is closed when AuthorizePayment is entered; the call then
	// blocks until authRelease is closed.
	authStarted chan struct{}
	authRelease chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		approve: true,
		session: "eyJtZXJjaGFudElkZW50aWZpZXIiOiJtZXJjaGFudC5jb20uZXhhbXBsZSJ9",
		snapshot: func(int) (*OrderSnapshot, error) {
			return orderFixture(), nil
		},
	}
}

func orderFixture() *OrderSnapshot {
	return &OrderSnapshot{
		OrderID:  "O1",
		Currency: "USD",
		Subtotal: Amount{CurrencyCode: "USD", Value: "20.00"},
		Tax:      Amount{CurrencyCode: "USD", Value: "2.00"},
		Shipping: Amount{CurrencyCode: "USD", Value: "5.00"},
		Total:    Amount{CurrencyCode: "USD", Value: "27.00"},
		ShippingOptions: []ShippingMethod{
			{Identifier: "std", Label: "Standard", Amount: "5.00"},
			{Identifier: "exp", Label: "Express", Amount: "15.00"},
			{Identifier: "pickup", Label: "Store pickup", Detail: ShippingDetailPickup, Amount: "0.00"},
		},
	}
}

func (b *fakeBackend) CreateOrder(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	if b.createErr != nil {
		return "", b.createErr
	}
	return "O1", nil
}

func (b *fakeBackend) FetchOrderSnapshot(ctx context.Context, orderID, country string) (*OrderSnapshot, error) {
	b.mu.Lock()
	b.snapshots++
	call := b.snapshots
	b.countries = append(b.countries, country)
	fn := b.snapshot
	b.mu.Unlock()
	return fn(call)
}

func (b *fakeBackend) ExchangeMerchantValidation(ctx context.Context, req MerchantValidationRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validation = append(b.validation, req)
	return b.session, nil
}

func (b *fakeBackend) AuthorizePayment(ctx context.Context, orderID string, payment Payment) (*Authorization, error) {
	if b.authStarted != nil {
		close(b.authStarted)
		<-b.authRelease
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payments = append(b.payments, payment)
	if b.authErr != nil {
		return nil, b.authErr
	}
	return &Authorization{OrderID: orderID, Approved: b.approve}, nil
}

func (b *fakeBackend) snapshotCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshots
}

// hookRecorder counts hook invocations.
type hookRecorder struct {
	mu       sync.Mutex
	approved []ApprovalData
	actions  []Actions
	cancels  int
	errs     []error
}

func (h *hookRecorder) options() []Option {
	return []Option{
		WithOnApprove(func(ctx context.Context, data ApprovalData, actions Actions) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.approved = append(h.approved, data)
			h.actions = append(h.actions, actions)
			return nil
		}),
		WithOnCancel(func(ctx context.Context) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.cancels++
		}),
		WithOnError(func(ctx context.Context, err error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errs = append(h.errs, err)
		}),
	}
}

func (h *hookRecorder) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	coord   *Coordinator
	backend *fakeBackend
	sheet   *fakeSheet
	hooks   *hookRecorder
	opens   int

	openErr    error
	setupSheet func(*fakeSheet)
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{backend: newFakeBackend(), hooks: &hookRecorder{}}
	launcher := SheetLauncherFunc(func(ctx context.Context, version int, req PaymentRequest) (Sheet, error) {
		h.opens++
		if h.openErr != nil {
			return nil, h.openErr
		}
		h.sheet = newFakeSheet()
		h.sheet.version = version
		h.sheet.request = req
		if h.setupSheet != nil {
			h.setupSheet(h.sheet)
		}
		return h.sheet, nil
	})
	all := append([]Option{WithLogger(discardLogger())}, h.hooks.options()...)
	h.coord = NewCoordinator(h.backend, launcher, append(all, opts...)...)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.coord.Start(context.Background()))
	require.Equal(t, StateSheetOpen, h.coord.State())
}

// currentSession exposes the open session so tests can inspect it after close.
func (h *harness) currentSession(t *testing.T) *session {
	t.Helper()
	h.coord.mu.Lock()
	defer h.coord.mu.Unlock()
	require.NotNil(t, h.coord.current)
	return h.coord.current
}

var (
	errBackendDown      = errors.New("backend down")
	errSheetUnavailable = errors.New("sheet unavailable")
)

func validContact() PaymentContact {
	return PaymentContact{Locality: "Austin", AdministrativeArea: "TX", PostalCode: "78701", CountryCode: "us"}
}
