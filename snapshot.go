package wallet

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var (
	shippingContactFields = []string{"postalAddress", "name", "phone", "email"}
	contactOnlyFields     = []string{"name", "phone", "email"}
	billingContactFields  = []string{"postalAddress"}
)

// fetchSnapshot reads the order's current totals. Failures are returned as-is;
// the caller decides whether they are fatal.
func (c *Coordinator) fetchSnapshot(ctx context.Context, orderID string) (*OrderSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "wallet.fetch_snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.order_id", orderID), attribute.String("wallet.country", c.cfg.country))

	snapshot, err := c.backend.FetchOrderSnapshot(ctx, orderID, c.cfg.country)
	if err == nil && snapshot == nil {
		err = errors.New("backend returned an empty order snapshot")
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return normalizeSnapshot(*snapshot, c.cfg.currency), nil
}

// normalizeSnapshot fills missing currencies and the merchant name placeholder.
func normalizeSnapshot(snap OrderSnapshot, fallbackCurrency string) *OrderSnapshot {
	currency := strings.ToUpper(snap.Currency)
	if currency == "" {
		currency = firstNonEmpty(snap.Total.CurrencyCode, snap.Subtotal.CurrencyCode, fallbackCurrency)
	}
	snap.Currency = currency
	for _, a := range []*Amount{&snap.Subtotal, &snap.Tax, &snap.Shipping, &snap.Total} {
		if a.CurrencyCode == "" {
			a.CurrencyCode = currency
		}
	}
	if strings.TrimSpace(snap.MerchantName) == "" {
		snap.MerchantName = defaultMerchantName
	}
	snap.ShippingOptions = append([]ShippingMethod(nil), snap.ShippingOptions...)
	return &snap
}

// applySnapshot seeds the session from the first snapshot and builds the
// request the sheet is opened with.
func (c *Coordinator) applySnapshot(s *session, snap *OrderSnapshot) (PaymentRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return PaymentRequest{}, false
	}
	s.currency = snap.Currency
	s.subtotal = snap.Subtotal
	s.tax = snap.Tax
	s.shipping = snap.Shipping
	s.total = snap.Total
	s.merchantName = snap.MerchantName
	if len(snap.ShippingOptions) > 0 {
		s.method = cloneMethod(&snap.ShippingOptions[0])
	}
	return c.paymentRequest(s, snap), true
}

func (c *Coordinator) paymentRequest(s *session, snap *OrderSnapshot) PaymentRequest {
	req := PaymentRequest{
		CountryCode:                   c.cfg.country,
		CurrencyCode:                  s.currency,
		MerchantCapabilities:          append([]string(nil), c.cfg.merchantCapabilities...),
		SupportedNetworks:             append([]string(nil), c.cfg.supportedNetworks...),
		RequiredBillingContactFields:  billingContactFields,
		RequiredShippingContactFields: contactOnlyFields,
		ShippingMethods:               snap.ShippingOptions,
		LineItems:                     ComposeLineItems(s.lineItemInput(s.method)),
		Total: LineItem{
			Label:  s.merchantName,
			Amount: s.total,
			Type:   LineItemTypeFinal,
		},
	}
	if len(snap.ShippingOptions) > 0 {
		req.RequiredShippingContactFields = shippingContactFields
	}
	return req
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return strings.ToUpper(v)
		}
	}
	return ""
}
