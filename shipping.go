package wallet

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// ResultKind tags the outcome of a shipping negotiation.
type ResultKind int

const (
	// ResultUpdated means the change was applied and Update carries fresh totals.
	ResultUpdated ResultKind = iota
	// ResultInvalid means the contact failed local checks; Update carries the
	// unchanged totals plus the errors to show and Err is a non-fatal
	// CategoryValidation error.
	ResultInvalid
	// ResultFailed means the backend refused the change or could not be reached.
	ResultFailed
	// ResultStale means the session closed while negotiating; nothing may be sent.
	ResultStale
)

// NegotiationResult is the tagged outcome of one negotiation step sequence.
type NegotiationResult struct {
	Kind   ResultKind
	Update Update
	Err    error
}

type negotiation struct {
	trigger ShippingTrigger
	contact *PaymentContact
	method  *ShippingMethod
}

// negotiationView is what a negotiation reads from the session before it
// suspends on the backend.
type negotiationView struct {
	orderID  string
	currency string
	shipping Amount
	contact  *PaymentContact
	method   *ShippingMethod
	update   Update
}

func (c *Coordinator) handleShippingMethodSelected(s *session, ev Event) {
	payload, err := ev.AsShippingMethodSelected()
	if err != nil {
		c.logger.Warn("decode shipping method event", "session_id", s.id, "error", err)
		if update, ok := c.currentUpdate(s, nil); ok {
			c.completeShippingMethod(s, update)
		}
		return
	}
	method := payload.ShippingMethod
	result := c.negotiateShipping(s, negotiation{trigger: ShippingTriggerOption, method: &method})
	update := result.Update
	switch result.Kind {
	case ResultStale:
		return
	case ResultFailed:
		// Keep the previous amounts but show the label the buyer picked.
		c.logger.Warn("shipping method negotiation failed", "session_id", s.id, "error", result.Err)
		var ok bool
		if update, ok = c.currentUpdate(s, &method); !ok {
			return
		}
	}
	c.completeShippingMethod(s, update)
}

func (c *Coordinator) completeShippingMethod(s *session, update Update) {
	sheet, ok := c.sheetFor(s)
	if !ok {
		return
	}
	if err := sheet.CompleteShippingMethodSelection(update); err != nil {
		c.logger.Warn("complete shipping method selection", "session_id", s.id, "error", err)
	}
}

func (c *Coordinator) handleShippingContactSelected(s *session, ev Event) {
	payload, err := ev.AsShippingContactSelected()
	if err != nil {
		c.fail(s, CategoryShippingContact, "decode shipping contact", err)
		return
	}
	contact := payload.ShippingContact
	result := c.negotiateShipping(s, negotiation{trigger: ShippingTriggerAddress, contact: &contact})
	switch result.Kind {
	case ResultStale:
		return
	case ResultFailed:
		c.fail(s, CategoryShippingContact, "negotiate shipping contact", result.Err)
		return
	}
	sheet, ok := c.sheetFor(s)
	if !ok {
		return
	}
	if err := sheet.CompleteShippingContactSelection(result.Update); err != nil {
		c.logger.Warn("complete shipping contact selection", "session_id", s.id, "error", err)
	}
}

// negotiateShipping runs the negotiation steps for one sheet event while
// holding the session's negotiation lock.
func (c *Coordinator) negotiateShipping(s *session, n negotiation) NegotiationResult {
	s.negotiate.Lock()
	defer s.negotiate.Unlock()

	view, ok := c.beginNegotiation(s, n)
	if !ok {
		return NegotiationResult{Kind: ResultStale}
	}
	defer c.transition(s, StateSheetOpen)

	if c.cfg.shippingNegotiator == nil {
		return c.staticTotals(s, n, view)
	}

	// Step 1: local structural checks.
	contact := n.contact
	if contact == nil {
		contact = view.contact
	}
	var address *ShippingAddress
	if contact != nil || n.trigger == ShippingTriggerAddress {
		var sheetErrs []SheetError
		address, sheetErrs = ValidateShippingContact(contact)
		if len(sheetErrs) > 0 {
			update := view.update
			update.Errors = sheetErrs
			err := newSessionError(CategoryValidation, "validate shipping contact", view.orderID, ErrInvalidShippingContact)
			c.logger.Info("shipping contact rejected", "session_id", s.id, "category", string(CategoryValidation), "fields", len(sheetErrs))
			return NegotiationResult{Kind: ResultInvalid, Update: update, Err: err}
		}
	}

	// Step 2: backend business rules.
	req := ShippingChangeRequest{
		OrderID:                view.orderID,
		CallbackTrigger:        n.trigger,
		Amount:                 NewAmount(view.currency, ZeroValue),
		ShippingAddress:        address,
		SelectedShippingOption: selectedOption(n.method, view),
	}
	if err := c.callNegotiator(s.ctx, req); err != nil {
		if !c.alive(s) {
			return NegotiationResult{Kind: ResultStale}
		}
		return NegotiationResult{Kind: ResultFailed, Err: err}
	}

	// Step 3: refetch authoritative totals.
	snapshot, err := c.fetchSnapshot(s.ctx, view.orderID)
	if err != nil {
		if !c.alive(s) {
			return NegotiationResult{Kind: ResultStale}
		}
		return NegotiationResult{Kind: ResultFailed, Err: fmt.Errorf("refetch order snapshot: %w", err)}
	}
	update, ok := c.commitNegotiation(s, contact, n.method, snapshot)
	if !ok {
		return NegotiationResult{Kind: ResultStale}
	}
	return NegotiationResult{Kind: ResultUpdated, Update: update}
}

func (c *Coordinator) beginNegotiation(s *session, n negotiation) (negotiationView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return negotiationView{}, false
	}
	s.state = StateNegotiating
	c.state = StateNegotiating
	return negotiationView{
		orderID:  s.orderID,
		currency: s.currency,
		shipping: s.shipping,
		contact:  cloneContact(s.contact),
		method:   cloneMethod(s.method),
		update:   s.update(s.method),
	}, true
}

// staticTotals answers from cached values when no negotiator is configured.
func (c *Coordinator) staticTotals(s *session, n negotiation, view negotiationView) NegotiationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return NegotiationResult{Kind: ResultStale}
	}
	if n.method != nil {
		s.method = cloneMethod(n.method)
	}
	if n.contact != nil {
		s.contact = cloneContact(n.contact)
	}
	return NegotiationResult{Kind: ResultUpdated, Update: view.update}
}

// commitNegotiation applies a successful negotiation to the session.
func (c *Coordinator) commitNegotiation(s *session, contact *PaymentContact, method *ShippingMethod, snap *OrderSnapshot) (Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return Update{}, false
	}
	s.contact = cloneContact(contact)
	if method != nil {
		s.method = cloneMethod(method)
	}
	switch {
	case s.method != nil && s.method.Amount != "":
		s.shipping = NewAmount(s.currency, s.method.Amount)
	case s.shipping.Value == "":
		s.shipping = NewAmount(s.currency, ZeroValue)
	}
	strict := c.cfg.strictZeroAmounts
	s.tax = reconcileAmount(s.tax, snap.Tax, strict)
	s.subtotal = reconcileAmount(s.subtotal, snap.Subtotal, strict)
	s.total = snap.Total
	s.merchantName = snap.MerchantName
	return s.update(s.method), true
}

func (c *Coordinator) callNegotiator(ctx context.Context, req ShippingChangeRequest) error {
	ctx, span := c.tracer.Start(ctx, "wallet.negotiate_shipping")
	defer span.End()
	span.SetAttributes(
		attribute.String("wallet.order_id", req.OrderID),
		attribute.String("wallet.callback_trigger", string(req.CallbackTrigger)),
	)
	res, err := c.cfg.shippingNegotiator.NegotiateShipping(ctx, req)
	switch {
	case err != nil:
	case res == nil:
		err = errors.New("negotiator returned no result")
	case !res.OK:
		err = fmt.Errorf("%w: %s", ErrShippingRejected, res.Reason)
	}
	if err != nil {
		recordError(span, err)
	}
	return err
}

// selectedOption describes the shipping option the backend should evaluate.
func selectedOption(candidate *ShippingMethod, view negotiationView) *ShippingOption {
	if candidate != nil {
		label := candidate.Label
		if label == "" && view.method != nil {
			label = view.method.Label
		}
		if label == "" {
			label = shippingLabel
		}
		return &ShippingOption{
			ID:     candidate.Identifier,
			Label:  label,
			Amount: NewAmount(view.currency, candidate.Amount).OrZero(),
		}
	}
	opt := &ShippingOption{
		Label:  shippingLabel,
		Amount: view.shipping.OrZero(),
	}
	if opt.Amount.CurrencyCode == "" {
		opt.Amount.CurrencyCode = view.currency
	}
	if view.method != nil {
		opt.ID = view.method.Identifier
	}
	return opt
}

// currentUpdate builds an Update from cached amounts, labelling shipping with method.
func (c *Coordinator) currentUpdate(s *session, method *ShippingMethod) (Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return Update{}, false
	}
	return s.update(method), true
}

func (c *Coordinator) sheetFor(s *session) (Sheet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed || s.sheet == nil {
		return nil, false
	}
	return s.sheet, true
}
