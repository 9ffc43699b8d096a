package wallet

import (
	"encoding/json"
	"testing"
)

func TestEventWireFormat(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"type":"shippingcontactselected","detail":{"shippingContact":{"locality":"Austin","countryCode":"us"}}}`)
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Kind != EventShippingContactSelected {
		t.Fatalf("unexpected kind %s", ev.Kind)
	}
	payload, err := ev.AsShippingContactSelected()
	if err != nil {
		t.Fatalf("AsShippingContactSelected() error = %v", err)
	}
	if payload.ShippingContact.Locality != "Austin" || payload.ShippingContact.CountryCode != "us" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if err := ev.Merge(map[string]any{"shippingContact": map[string]any{"postalCode": "78701"}}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	merged, err := ev.AsShippingContactSelected()
	if err != nil {
		t.Fatalf("AsShippingContactSelected() error = %v", err)
	}
	if merged.ShippingContact.PostalCode != "78701" || merged.ShippingContact.Locality != "Austin" {
		t.Fatalf("merge lost fields: %+v", merged)
	}

	out, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire struct {
		Type   EventKind       `json:"type"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(out, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if wire.Type != EventShippingContactSelected || len(wire.Detail) == 0 {
		t.Fatalf("unexpected wire form %s", out)
	}
}

func TestEventWithoutPayload(t *testing.T) {
	t.Parallel()

	ev, err := NewEvent(EventPaymentAuthorized, nil)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	payload, err := ev.AsPaymentAuthorized()
	if err != nil {
		t.Fatalf("AsPaymentAuthorized() error = %v", err)
	}
	if payload.Payment != nil {
		t.Fatalf("expected no payment, got %+v", payload.Payment)
	}
	out, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"type":"paymentauthorized","detail":null}` {
		t.Fatalf("unexpected wire form %s", out)
	}
}

func TestFundingEligibility(t *testing.T) {
	t.Parallel()

	var f FundingEligibility
	if err := json.Unmarshal([]byte(`{"applepay":{"eligible":true},"card":{"eligible":false}}`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !f.IsEligible() {
		t.Fatalf("expected applepay to be eligible")
	}
	if (FundingEligibility{}).IsEligible() {
		t.Fatalf("expected empty eligibility to be ineligible")
	}
}
