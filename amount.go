package wallet

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ZeroValue is the canonical zero amount. A line item carrying it is suppressed.
const ZeroValue = "0.00"

// BackendUnchangedValue is what the order backend reports for tax and
// subtotal when a shipping negotiation left them untouched. It is
// byte-identical to [ZeroValue]; the coordinator keeps the previous amount
// when it sees it, unless [WithStrictZeroAmounts] is set.
const BackendUnchangedValue = ZeroValue

// NewAmount builds an Amount in the given currency.
func NewAmount(currency, value string) Amount {
	return Amount{CurrencyCode: currency, Value: value}
}

// IsZero reports whether the amount is absent or equal to zero.
func (a Amount) IsZero() bool {
	if a.Value == "" || a.Value == ZeroValue {
		return true
	}
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return false
	}
	return d.IsZero()
}

// Decimal parses the value. An empty value parses as zero.
func (a Amount) Decimal() (decimal.Decimal, error) {
	if a.Value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", a.Value, err)
	}
	return d, nil
}

// Validate checks that the value parses and is not negative.
func (a Amount) Validate() error {
	d, err := a.Decimal()
	if err != nil {
		return err
	}
	if d.IsNegative() {
		return fmt.Errorf("amount %q must not be negative", a.Value)
	}
	return nil
}

// OrZero returns a, or a zero amount in the same currency when a has no value.
func (a Amount) OrZero() Amount {
	if a.Value == "" {
		a.Value = ZeroValue
	}
	return a
}

// FormatAmount renders a decimal with the two fraction digits the sheet expects.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// reconcileAmount keeps prev when next carries the backend's "unchanged" marker.
func reconcileAmount(prev, next Amount, strict bool) Amount {
	if !strict && next.Value == BackendUnchangedValue {
		return prev
	}
	return next
}
