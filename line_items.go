package wallet

const (
	subtotalLabel = "Subtotal"
	taxLabel      = "Sales Tax"
	shippingLabel = "Shipping"
)

// LineItemInput carries the cached amounts a set of line items is derived from.
type LineItemInput struct {
	Subtotal      Amount
	Tax           Amount
	Shipping      Amount
	ShippingLabel string
	IsPickup      bool
}

// ComposeLineItems derives the sheet's line items in the fixed order
// subtotal, tax, shipping. Zero lines are dropped; the shipping line is kept
// for pickup regardless of its amount.
func ComposeLineItems(in LineItemInput) []LineItem {
	items := make([]LineItem, 0, 3)
	if !in.Subtotal.IsZero() {
		items = append(items, LineItem{Label: subtotalLabel, Amount: in.Subtotal, Type: LineItemTypeFinal})
	}
	if !in.Tax.IsZero() {
		items = append(items, LineItem{Label: taxLabel, Amount: in.Tax, Type: LineItemTypeFinal})
	}
	if !in.Shipping.IsZero() || in.IsPickup {
		label := in.ShippingLabel
		if label == "" {
			label = shippingLabel
		}
		items = append(items, LineItem{Label: label, Amount: in.Shipping.OrZero(), Type: LineItemTypeFinal})
	}
	return items
}
