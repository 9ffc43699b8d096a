package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// NormalizePayment returns a copy of p with contact country codes upper-cased.
// The sheet may deliver them lowercased.
func NormalizePayment(p Payment) Payment {
	p.BillingContact = normalizeContact(p.BillingContact)
	p.ShippingContact = normalizeContact(p.ShippingContact)
	return p
}

func normalizeContact(c *PaymentContact) *PaymentContact {
	if c == nil {
		return nil
	}
	cp := cloneContact(c)
	cp.CountryCode = strings.ToUpper(strings.TrimSpace(cp.CountryCode))
	return cp
}

func (c *Coordinator) handlePaymentAuthorized(s *session, ev Event) {
	s.negotiate.Lock()
	defer s.negotiate.Unlock()

	orderID, ok := c.beginAuthorization(s)
	if !ok {
		return
	}

	payload, err := ev.AsPaymentAuthorized()
	if err != nil || payload.Payment == nil {
		cause := ErrMissingPayment
		if err != nil {
			cause = fmt.Errorf("%w: %v", ErrMissingPayment, err)
		}
		c.completePayment(s, StatusFailure)
		c.fail(s, CategoryMissingPayment, "authorize payment", cause)
		return
	}

	payment := NormalizePayment(*payload.Payment)
	if err := c.authorize(s.ctx, orderID, payment); err != nil {
		if !c.alive(s) {
			return
		}
		c.completePayment(s, StatusFailure)
		c.fail(s, CategoryAuthorization, "authorize payment", err)
		return
	}
	if !c.completePayment(s, StatusSuccess) {
		return
	}
	c.mu.Lock()
	cancelled := s.cancelPending
	c.mu.Unlock()
	if !c.close(s) {
		return
	}
	c.logger.Info("payment approved", "session_id", s.id, "order_id", orderID, "cancel_ignored", cancelled)
	if c.cfg.onApprove == nil {
		return
	}
	actions := Actions{Restart: c.restartAfter(s)}
	if err := c.cfg.onApprove(hookContext(s), ApprovalData{OrderID: orderID}, actions); err != nil {
		c.logger.Error("approve hook failed", "session_id", s.id, "order_id", orderID, "error", err)
		if c.cfg.onError != nil {
			c.cfg.onError(hookContext(s), newSessionError(CategoryAuthorization, "approve hook", orderID, err))
		}
	}
}

func (c *Coordinator) beginAuthorization(s *session) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return "", false
	}
	s.state = StateAuthorizing
	c.state = StateAuthorizing
	return s.orderID, true
}

func (c *Coordinator) authorize(ctx context.Context, orderID string, payment Payment) error {
	ctx, span := c.tracer.Start(ctx, "wallet.authorize")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.order_id", orderID))

	auth, err := c.backend.AuthorizePayment(ctx, orderID, payment)
	switch {
	case err != nil:
	case auth == nil:
		err = errors.New("backend returned no authorization")
	case !auth.Approved:
		err = ErrPaymentDeclined
	}
	if err != nil {
		recordError(span, err)
		return err
	}
	span.SetAttributes(attribute.Bool("wallet.approved", true))
	return nil
}

// completePayment sends the single terminal status for the payment. The sheet
// is considered finished afterwards and will not be aborted on close.
func (c *Coordinator) completePayment(s *session, status PaymentStatus) bool {
	c.mu.Lock()
	if s.closed || s.sheetDone || s.sheet == nil {
		c.mu.Unlock()
		return false
	}
	s.sheetDone = true
	sheet := s.sheet
	c.mu.Unlock()

	if err := sheet.CompletePayment(PaymentResult{Status: status}); err != nil {
		c.logger.Warn("complete payment", "session_id", s.id, "status", string(status), "error", err)
	}
	return true
}

// restartAfter returns a restart capability that only works once prev has
// fully closed.
func (c *Coordinator) restartAfter(prev *session) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-prev.done:
		default:
			return ErrSessionOpen
		}
		return c.Start(ctx)
	}
}
