package wallet

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountIsZero(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value string
		want  bool
	}{
		"empty":        {value: "", want: true},
		"canonical":    {value: "0.00", want: true},
		"integer zero": {value: "0", want: true},
		"positive":     {value: "0.01", want: false},
		"garbage":      {value: "abc", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := NewAmount("USD", tt.value).IsZero(); got != tt.want {
				t.Fatalf("IsZero(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestAmountValidate(t *testing.T) {
	t.Parallel()

	if err := NewAmount("USD", "12.30").Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := NewAmount("USD", "-1.00").Validate(); err == nil {
		t.Fatalf("expected negative amount to fail")
	}
	if err := NewAmount("USD", "1,00").Validate(); err == nil {
		t.Fatalf("expected malformed amount to fail")
	}
}

func TestReconcileAmount(t *testing.T) {
	t.Parallel()

	prev := NewAmount("USD", "2.00")
	unchanged := NewAmount("USD", BackendUnchangedValue)
	changed := NewAmount("USD", "3.10")

	if got := reconcileAmount(prev, unchanged, false); got != prev {
		t.Fatalf("expected previous amount to be kept, got %+v", got)
	}
	if got := reconcileAmount(prev, unchanged, true); got != unchanged {
		t.Fatalf("expected strict mode to accept zero, got %+v", got)
	}
	if got := reconcileAmount(prev, changed, false); got != changed {
		t.Fatalf("expected new amount, got %+v", got)
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	if got := FormatAmount(decimal.RequireFromString("27")); got != "27.00" {
		t.Fatalf("FormatAmount() = %q", got)
	}
	if got := FormatAmount(decimal.RequireFromString("1.005")); got != "1.01" {
		t.Fatalf("FormatAmount() = %q", got)
	}
}
