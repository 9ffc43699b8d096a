package wallet

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle state of a payment session.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCreatingOrder
	StateSheetOpen
	StateNegotiating
	StateAuthorizing
	StateClosed
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateValidating:    "validating",
	StateCreatingOrder: "creating_order",
	StateSheetOpen:     "sheet_open",
	StateNegotiating:   "negotiating",
	StateAuthorizing:   "authorizing",
	StateClosed:        "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// SessionInfo is a read-only copy of the open session.
type SessionInfo struct {
	ID              string
	Generation      uint64
	State           State
	OrderID         string
	Currency        string
	Subtotal        Amount
	Tax             Amount
	Shipping        Amount
	Total           Amount
	MerchantName    string
	ShippingContact *PaymentContact
	ShippingMethod  *ShippingMethod
	StartedAt       time.Time
}

// session is owned by the Coordinator; every field below negotiate is guarded
// by Coordinator.mu.
type session struct {
	id         string
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	startedAt  time.Time

	// negotiate serializes shipping negotiations and authorization.
	negotiate sync.Mutex

	state        State
	closed       bool
	orderID      string
	currency     string
	subtotal     Amount
	tax          Amount
	shipping     Amount
	total        Amount
	merchantName string
	contact      *PaymentContact
	method       *ShippingMethod
	sheet        Sheet
	sheetDone    bool
	// cancelPending records a cancel that arrived while authorizing.
	cancelPending bool
	cleanups      []func()
	timer         *time.Timer
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:              s.id,
		Generation:      s.generation,
		State:           s.state,
		OrderID:         s.orderID,
		Currency:        s.currency,
		Subtotal:        s.subtotal,
		Tax:             s.tax,
		Shipping:        s.shipping,
		Total:           s.total,
		MerchantName:    s.merchantName,
		ShippingContact: cloneContact(s.contact),
		ShippingMethod:  cloneMethod(s.method),
		StartedAt:       s.startedAt,
	}
}

// lineItemInput reads the cached amounts with the given shipping label source.
func (s *session) lineItemInput(method *ShippingMethod) LineItemInput {
	in := LineItemInput{
		Subtotal: s.subtotal,
		Tax:      s.tax,
		Shipping: s.shipping,
	}
	if in.Shipping.CurrencyCode == "" {
		in.Shipping.CurrencyCode = s.currency
	}
	if method != nil {
		in.ShippingLabel = method.Label
	}
	// Pickup follows the method the session committed to, not a candidate.
	in.IsPickup = s.method.IsPickup()
	return in
}

// update builds an Update from the cached amounts.
func (s *session) update(method *ShippingMethod) Update {
	total := s.total
	if total.Value == "" {
		total = NewAmount(s.currency, ZeroValue)
	}
	return Update{
		NewTotal:     LineItem{Label: s.merchantName, Amount: total, Type: LineItemTypeFinal},
		NewLineItems: ComposeLineItems(s.lineItemInput(method)),
	}
}

func cloneContact(c *PaymentContact) *PaymentContact {
	if c == nil {
		return nil
	}
	cp := *c
	cp.AddressLines = append([]string(nil), c.AddressLines...)
	return &cp
}

func cloneMethod(m *ShippingMethod) *ShippingMethod {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}
