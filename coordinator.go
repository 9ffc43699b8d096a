package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sumup/wallet"

// Coordinator drives one payment sheet at a time through order creation,
// shipping negotiation, merchant validation and authorization.
//
// A Coordinator owns at most one open session. Create one per checkout
// surface and keep it for the lifetime of that surface.
type Coordinator struct {
	backend  Backend
	launcher SheetLauncher
	cfg      config
	logger   *slog.Logger
	tracer   trace.Tracer

	mu         sync.Mutex
	current    *session
	state      State
	generation uint64
}

// NewCoordinator wires a [Coordinator] to the order backend and the sheet launcher.
func NewCoordinator(backend Backend, launcher SheetLauncher, opts ...Option) *Coordinator {
	if backend == nil {
		panic("wallet: backend is required")
	}
	if launcher == nil {
		panic("wallet: sheet launcher is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &Coordinator{
		backend:  backend,
		launcher: launcher,
		cfg:      cfg,
		logger:   cfg.logger.With("component", "wallet"),
		tracer:   cfg.tracerProvider.Tracer(tracerName),
		state:    StateIdle,
	}
}

// State returns the state of the open session, or of the last one once it closed.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the open session.
func (c *Coordinator) Session() (SessionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return SessionInfo{}, false
	}
	return c.current.info(), true
}

// Start opens a new payment session. It is a no-op while another session is
// open. A declined trigger ends the session quietly and returns nil; setup
// failures close the session, reach the error hook and are returned.
func (c *Coordinator) Start(ctx context.Context) error {
	s, ok := c.open(ctx)
	if !ok {
		c.logger.DebugContext(ctx, "payment session already open")
		return nil
	}

	valid, err := c.validateTrigger(s.ctx)
	if err != nil {
		return c.failSetup(s, "validate trigger", err)
	}
	if !valid {
		c.logger.InfoContext(ctx, "payment trigger declined", "session_id", s.id, "category", string(CategoryDeclinedTrigger))
		c.close(s)
		return nil
	}

	if !c.transition(s, StateCreatingOrder) {
		return nil
	}
	orderID, err := c.createOrder(s.ctx)
	if err != nil {
		return c.failSetup(s, "create order", err)
	}
	c.mu.Lock()
	s.orderID = orderID
	c.mu.Unlock()

	snapshot, err := c.fetchSnapshot(s.ctx, orderID)
	if err != nil {
		return c.failSetup(s, "fetch order snapshot", err)
	}
	req, ok := c.applySnapshot(s, snapshot)
	if !ok {
		return nil
	}

	sheet, err := c.launcher.Open(s.ctx, SupportedVersion, req)
	if err != nil {
		return c.failSetup(s, "open sheet", err)
	}
	if !c.attachSheet(s, sheet) {
		if err := sheet.Abort(); err != nil {
			c.logger.WarnContext(ctx, "abort stale sheet", "error", err)
		}
		return nil
	}
	if err := c.subscribe(s, sheet); err != nil {
		return c.failSetup(s, "register sheet listeners", err)
	}
	if !c.transition(s, StateSheetOpen) {
		return nil
	}
	if err := sheet.Begin(); err != nil {
		return c.failSetup(s, "begin sheet", err)
	}
	c.logger.InfoContext(ctx, "payment sheet opened", "session_id", s.id, "order_id", orderID)
	return nil
}

// Close ends the open session, if any. It is safe to call repeatedly and
// from any state.
func (c *Coordinator) Close() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		c.close(s)
	}
}

func (c *Coordinator) open(ctx context.Context) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return nil, false
	}
	c.generation++
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:           uuid.NewString(),
		generation:   c.generation,
		ctx:          sctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		startedAt:    c.cfg.clock(),
		state:        StateValidating,
		currency:     c.cfg.currency,
		merchantName: defaultMerchantName,
	}
	if c.cfg.sessionTimeout > 0 {
		s.timer = time.AfterFunc(c.cfg.sessionTimeout, func() {
			c.fail(s, CategorySetup, "session timeout", ErrSessionTimeout)
		})
	}
	c.current = s
	c.state = StateValidating
	return s, true
}

// close releases everything the session holds. It reports whether this call
// performed the close.
func (c *Coordinator) close(s *session) bool {
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return false
	}
	s.closed = true
	s.state = StateClosed
	if c.current == s {
		c.current = nil
		c.state = StateClosed
	}
	cleanups := s.cleanups
	s.cleanups = nil
	sheet := s.sheet
	abort := sheet != nil && !s.sheetDone
	timer := s.timer
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	s.cancel()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	if abort {
		if err := sheet.Abort(); err != nil {
			c.logger.Warn("abort sheet", "session_id", s.id, "error", err)
		}
	}
	close(s.done)
	c.logger.Debug("payment session closed", "session_id", s.id, "duration", c.cfg.clock().Sub(s.startedAt))
	return true
}

// alive reports whether s is still the open session.
func (c *Coordinator) alive(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !s.closed
}

func (c *Coordinator) transition(s *session, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return false
	}
	s.state = to
	c.state = to
	return true
}

// fail closes the session and hands the error to the error hook. Errors from a
// session that was already closed are dropped.
func (c *Coordinator) fail(s *session, category ErrorCategory, op string, err error) *SessionError {
	c.mu.Lock()
	orderID := s.orderID
	c.mu.Unlock()
	serr := newSessionError(category, op, orderID, err)
	if !c.close(s) {
		c.logger.Debug("dropping error from closed session", "session_id", s.id, "op", op, "error", err)
		return nil
	}
	c.logger.Error("payment session failed", "session_id", s.id, "order_id", orderID, "category", string(category), "op", op, "error", err)
	if c.cfg.onError != nil {
		c.cfg.onError(hookContext(s), serr)
	}
	return serr
}

// failSetup returns nil when the session was already closed by someone else.
func (c *Coordinator) failSetup(s *session, op string, err error) error {
	if serr := c.fail(s, CategorySetup, op, err); serr != nil {
		return serr
	}
	return nil
}

func (c *Coordinator) validateTrigger(ctx context.Context) (bool, error) {
	if c.cfg.checkEligibility && !c.cfg.fundingEligibility.IsEligible() {
		c.logger.DebugContext(ctx, "wallet funding source not eligible")
		return false, nil
	}
	if c.cfg.onClick == nil {
		return true, nil
	}
	return c.cfg.onClick(ctx)
}

func (c *Coordinator) createOrder(ctx context.Context) (string, error) {
	ctx, span := c.tracer.Start(ctx, "wallet.create_order")
	defer span.End()
	orderID, err := c.backend.CreateOrder(ctx)
	if err == nil && orderID == "" {
		err = errors.New("backend returned an empty order id")
	}
	if err != nil {
		recordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("wallet.order_id", orderID))
	return orderID, nil
}

func (c *Coordinator) attachSheet(s *session, sheet Sheet) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return false
	}
	s.sheet = sheet
	return true
}

func (c *Coordinator) addCleanup(s *session, fn func()) {
	c.mu.Lock()
	if !s.closed {
		s.cleanups = append(s.cleanups, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

type eventHandler func(c *Coordinator, s *session, ev Event)

// handlerFor is the dispatch table for every event kind the sheet emits.
func handlerFor(kind EventKind) eventHandler {
	switch kind {
	case EventValidateMerchant:
		return (*Coordinator).handleValidateMerchant
	case EventPaymentMethodSelected:
		return (*Coordinator).handlePaymentMethodSelected
	case EventShippingMethodSelected:
		return (*Coordinator).handleShippingMethodSelected
	case EventShippingContactSelected:
		return (*Coordinator).handleShippingContactSelected
	case EventPaymentAuthorized:
		return (*Coordinator).handlePaymentAuthorized
	case EventCancel:
		return (*Coordinator).handleCancel
	default:
		return nil
	}
}

func (c *Coordinator) subscribe(s *session, sheet Sheet) error {
	for _, kind := range EventKinds {
		handle := handlerFor(kind)
		if handle == nil {
			return fmt.Errorf("no handler for %s events", kind)
		}
		unsubscribe, err := sheet.AddEventListener(kind, func(ctx context.Context, ev Event) {
			c.dispatch(ctx, s, kind, ev, handle)
		})
		if err != nil {
			return fmt.Errorf("add %s listener: %w", kind, err)
		}
		if unsubscribe != nil {
			c.addCleanup(s, unsubscribe)
		}
	}
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, s *session, kind EventKind, ev Event, handle eventHandler) {
	if ev.Kind == "" {
		ev.Kind = kind
	}
	if !c.alive(s) {
		c.logger.DebugContext(ctx, "dropping event for closed session", "event", string(kind), "session_id", s.id)
		return
	}
	c.logger.InfoContext(ctx, "wallet sheet event", "event", string(kind), "session_id", s.id)
	handle(c, s, ev)
}

func (c *Coordinator) handleCancel(s *session, _ Event) {
	c.mu.Lock()
	if s.state == StateAuthorizing && !s.closed {
		// The backend outcome decides; the sheet still gets its single status.
		s.cancelPending = true
		c.mu.Unlock()
		c.logger.Info("cancel deferred until authorization completes", "session_id", s.id)
		return
	}
	s.sheetDone = true
	c.mu.Unlock()
	if !c.close(s) {
		return
	}
	if c.cfg.onCancel != nil {
		c.cfg.onCancel(hookContext(s))
	}
}

func (c *Coordinator) handlePaymentMethodSelected(s *session, _ Event) {
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return
	}
	update := s.update(s.method)
	sheet := s.sheet
	c.mu.Unlock()
	if err := sheet.CompletePaymentMethodSelection(update); err != nil {
		c.logger.Warn("complete payment method selection", "session_id", s.id, "error", err)
	}
}

// hookContext drops the session's cancellation; hooks run after close.
func hookContext(s *session) context.Context {
	return context.WithoutCancel(s.ctx)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
