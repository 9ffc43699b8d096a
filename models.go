package wallet

import (
	"encoding/json"

	"github.com/oapi-codegen/runtime"
)

// SupportedVersion is the payment sheet API version requested on open.
const SupportedVersion = 4

// LineItemType defines model for LineItem.Type.
type LineItemType string

// Defines values for LineItemType.
const (
	LineItemTypeFinal   LineItemType = "final"
	LineItemTypePending LineItemType = "pending"
)

// ShippingTrigger tells the backend which sheet interaction caused a shipping change.
type ShippingTrigger string

// Defines values for ShippingTrigger.
const (
	ShippingTriggerOption  ShippingTrigger = "SHIPPING_OPTION"
	ShippingTriggerAddress ShippingTrigger = "SHIPPING_ADDRESS"
)

// ShippingDetailPickup marks a [ShippingMethod] as in-store pickup.
const ShippingDetailPickup = "PICKUP"

// PaymentStatus defines model for PaymentResult.Status.
type PaymentStatus string

// Defines values for PaymentStatus.
const (
	StatusSuccess PaymentStatus = "success"
	StatusFailure PaymentStatus = "failure"
)

// SheetErrorCode defines model for SheetError.Code.
type SheetErrorCode string

// Defines values for SheetErrorCode.
const (
	ShippingContactInvalid SheetErrorCode = "shippingContactInvalid"
	BillingContactInvalid  SheetErrorCode = "billingContactInvalid"
	AddressUnserviceable   SheetErrorCode = "addressUnserviceable"
	UnknownSheetError      SheetErrorCode = "unknown"
)

// ContactField defines model for SheetError.ContactField.
type ContactField string

// Defines values for ContactField.
const (
	ContactFieldPostalAddress      ContactField = "postalAddress"
	ContactFieldPostalCode         ContactField = "postalCode"
	ContactFieldLocality           ContactField = "locality"
	ContactFieldAdministrativeArea ContactField = "administrativeArea"
	ContactFieldCountryCode        ContactField = "countryCode"
	ContactFieldEmailAddress       ContactField = "emailAddress"
	ContactFieldPhoneNumber        ContactField = "phoneNumber"
)

// Amount is a currency code plus a decimal string value.
type Amount struct {
	CurrencyCode string `json:"currency_code" validate:"required,currency"`
	Value        string `json:"value" validate:"required,amount"`
}

// LineItem defines model for the sheet's line items and total.
type LineItem struct {
	Label  string       `json:"label"`
	Amount Amount       `json:"amount"`
	Type   LineItemType `json:"type,omitempty"`
}

// PaymentContact defines model for a billing or shipping contact delivered by the sheet.
type PaymentContact struct {
	GivenName             string   `json:"givenName,omitempty"`
	FamilyName            string   `json:"familyName,omitempty"`
	EmailAddress          string   `json:"emailAddress,omitempty"`
	PhoneNumber           string   `json:"phoneNumber,omitempty"`
	AddressLines          []string `json:"addressLines,omitempty"`
	SubLocality           string   `json:"subLocality,omitempty"`
	Locality              string   `json:"locality,omitempty"`
	SubAdministrativeArea string   `json:"subAdministrativeArea,omitempty"`
	AdministrativeArea    string   `json:"administrativeArea,omitempty"`
	PostalCode            string   `json:"postalCode,omitempty"`
	Country               string   `json:"country,omitempty"`
	CountryCode           string   `json:"countryCode,omitempty" validate:"omitempty,len=2,uppercase"`
}

// ShippingMethod defines model for a sheet shipping method.
type ShippingMethod struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Detail     string `json:"detail,omitempty"`
	Amount     string `json:"amount"`
}

// IsPickup reports whether the method describes in-store pickup.
func (m *ShippingMethod) IsPickup() bool {
	return m != nil && m.Detail == ShippingDetailPickup
}

// PaymentMethod defines model for the card selected inside the sheet.
type PaymentMethod struct {
	DisplayName string `json:"displayName,omitempty"`
	Network     string `json:"network,omitempty"`
	Type        string `json:"type,omitempty"`
}

// PaymentToken defines model for Payment.Token.
type PaymentToken struct {
	PaymentData           json.RawMessage `json:"paymentData"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod"`
	TransactionIdentifier string          `json:"transactionIdentifier" validate:"required"`
}

// Payment is the final payload handed over by the sheet on authorization.
type Payment struct {
	Token           PaymentToken    `json:"token" validate:"required"`
	BillingContact  *PaymentContact `json:"billingContact,omitempty" validate:"omitempty"`
	ShippingContact *PaymentContact `json:"shippingContact,omitempty" validate:"omitempty"`
}

// PaymentRequest is the request the sheet is opened with.
type PaymentRequest struct {
	CountryCode                   string           `json:"countryCode"`
	CurrencyCode                  string           `json:"currencyCode"`
	MerchantCapabilities          []string         `json:"merchantCapabilities"`
	SupportedNetworks             []string         `json:"supportedNetworks"`
	RequiredBillingContactFields  []string         `json:"requiredBillingContactFields,omitempty"`
	RequiredShippingContactFields []string         `json:"requiredShippingContactFields,omitempty"`
	ShippingMethods               []ShippingMethod `json:"shippingMethods,omitempty"`
	LineItems                     []LineItem       `json:"lineItems"`
	Total                         LineItem         `json:"total"`
}

// SheetError defines model for an error reflected back into the sheet.
type SheetError struct {
	Code         SheetErrorCode `json:"code"`
	ContactField ContactField   `json:"contactField,omitempty"`
	Message      string         `json:"message"`
}

// Update is the response handed to the sheet after a selection event.
type Update struct {
	NewTotal     LineItem     `json:"newTotal"`
	NewLineItems []LineItem   `json:"newLineItems"`
	Errors       []SheetError `json:"errors,omitempty"`
}

// PaymentResult completes a paymentauthorized event.
type PaymentResult struct {
	Status PaymentStatus `json:"status"`
	Errors []SheetError  `json:"errors,omitempty"`
}

// MerchantSession is the opaque signed session returned by merchant validation.
type MerchantSession map[string]any

// OrderCreateResponse defines model for the order created by POST /orders.
type OrderCreateResponse struct {
	OrderID string `json:"order_id"`
}

// OrderSnapshot defines model for the totals and merchant identity of an order.
type OrderSnapshot struct {
	OrderID         string           `json:"order_id"`
	Currency        string           `json:"currency"`
	Subtotal        Amount           `json:"subtotal"`
	Tax             Amount           `json:"tax"`
	Shipping        Amount           `json:"shipping"`
	Total           Amount           `json:"total"`
	MerchantName    string           `json:"merchant_name,omitempty"`
	ShippingOptions []ShippingMethod `json:"shipping_options,omitempty"`
}

// ShippingAddress is the backend projection of a sheet shipping contact.
type ShippingAddress struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	CountryCode string `json:"country_code" validate:"required,len=2,uppercase"`
	PostalCode  string `json:"postal_code,omitempty" validate:"omitempty,max=16"`
}

// ShippingOption defines model for ShippingChangeRequest.SelectedShippingOption.
type ShippingOption struct {
	ID     string `json:"id"`
	Label  string `json:"label" validate:"required"`
	Amount Amount `json:"amount" validate:"required"`
}

// ShippingChangeRequest is sent to the backend on every shipping negotiation.
type ShippingChangeRequest struct {
	OrderID                string           `json:"order_id" validate:"required"`
	CallbackTrigger        ShippingTrigger  `json:"callback_trigger" validate:"required,oneof=SHIPPING_OPTION SHIPPING_ADDRESS"`
	Amount                 Amount           `json:"amount" validate:"required"`
	ShippingAddress        *ShippingAddress `json:"shipping_address,omitempty" validate:"omitempty"`
	SelectedShippingOption *ShippingOption  `json:"selected_shipping_option,omitempty" validate:"omitempty"`
}

// ShippingChangeResult defines model for the backend's negotiation verdict.
type ShippingChangeResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// MerchantValidationRequest asks the backend for a signed merchant session.
type MerchantValidationRequest struct {
	ValidationURL  string `json:"validation_url" validate:"required,url"`
	OrderID        string `json:"order_id" validate:"required"`
	MerchantDomain string `json:"merchant_domain,omitempty"`
}

// MerchantValidationResponse carries the base64 encoded merchant session.
type MerchantValidationResponse struct {
	Session string `json:"session"`
}

// Authorization defines model for the backend's verdict on a payment.
type Authorization struct {
	OrderID  string `json:"order_id"`
	Approved bool   `json:"approved"`
}

// ApprovalData is handed to the approval hook.
type ApprovalData struct {
	OrderID string `json:"order_id"`
}

// EventKind enumerates the sheet events the coordinator subscribes to.
type EventKind string

// Defines values for EventKind.
const (
	EventValidateMerchant        EventKind = "validatemerchant"
	EventPaymentMethodSelected   EventKind = "paymentmethodselected"
	EventShippingMethodSelected  EventKind = "shippingmethodselected"
	EventShippingContactSelected EventKind = "shippingcontactselected"
	EventPaymentAuthorized       EventKind = "paymentauthorized"
	EventCancel                  EventKind = "cancel"
)

// EventKinds lists every kind the coordinator registers, in registration order.
var EventKinds = []EventKind{
	EventValidateMerchant,
	EventPaymentMethodSelected,
	EventShippingMethodSelected,
	EventShippingContactSelected,
	EventPaymentAuthorized,
	EventCancel,
}

// ValidateMerchantEvent defines model for the validatemerchant payload.
type ValidateMerchantEvent struct {
	ValidationURL string `json:"validationURL"`
}

// PaymentMethodSelectedEvent defines model for the paymentmethodselected payload.
type PaymentMethodSelectedEvent struct {
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// ShippingMethodSelectedEvent defines model for the shippingmethodselected payload.
type ShippingMethodSelectedEvent struct {
	ShippingMethod ShippingMethod `json:"shippingMethod"`
}

// ShippingContactSelectedEvent defines model for the shippingcontactselected payload.
type ShippingContactSelectedEvent struct {
	ShippingContact PaymentContact `json:"shippingContact"`
}

// PaymentAuthorizedEvent defines model for the paymentauthorized payload.
type PaymentAuthorizedEvent struct {
	Payment *Payment `json:"payment"`
}

// Event is a sheet event: a kind plus the union payload for that kind.
type Event struct {
	Kind  EventKind `json:"type"`
	union json.RawMessage
}

// NewEvent builds an Event of the given kind from its payload.
func NewEvent(kind EventKind, payload any) (Event, error) {
	ev := Event{Kind: kind}
	if payload == nil {
		return ev, nil
	}
	b, err := json.Marshal(payload)
	ev.union = b
	return ev, err
}

// AsValidateMerchant returns the union data inside the Event as a ValidateMerchantEvent
func (t Event) AsValidateMerchant() (ValidateMerchantEvent, error) {
	var body ValidateMerchantEvent
	err := t.decode(&body)
	return body, err
}

// AsPaymentMethodSelected returns the union data inside the Event as a PaymentMethodSelectedEvent
func (t Event) AsPaymentMethodSelected() (PaymentMethodSelectedEvent, error) {
	var body PaymentMethodSelectedEvent
	err := t.decode(&body)
	return body, err
}

// AsShippingMethodSelected returns the union data inside the Event as a ShippingMethodSelectedEvent
func (t Event) AsShippingMethodSelected() (ShippingMethodSelectedEvent, error) {
	var body ShippingMethodSelectedEvent
	err := t.decode(&body)
	return body, err
}

// AsShippingContactSelected returns the union data inside the Event as a ShippingContactSelectedEvent
func (t Event) AsShippingContactSelected() (ShippingContactSelectedEvent, error) {
	var body ShippingContactSelectedEvent
	err := t.decode(&body)
	return body, err
}

// AsPaymentAuthorized returns the union data inside the Event as a PaymentAuthorizedEvent
func (t Event) AsPaymentAuthorized() (PaymentAuthorizedEvent, error) {
	var body PaymentAuthorizedEvent
	err := t.decode(&body)
	return body, err
}

// Merge performs a merge with any union data inside the Event, using the provided payload
func (t *Event) Merge(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(t.union) == 0 {
		t.union = b
		return nil
	}

	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// MarshalJSON serializes the event as {"type": kind, "detail": payload}.
func (t Event) MarshalJSON() ([]byte, error) {
	detail := t.union
	if len(detail) == 0 {
		detail = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Kind   EventKind       `json:"type"`
		Detail json.RawMessage `json:"detail"`
	}{Kind: t.Kind, Detail: detail})
}

// UnmarshalJSON loads an event serialized by MarshalJSON.
func (t *Event) UnmarshalJSON(b []byte) error {
	var wire struct {
		Kind   EventKind       `json:"type"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	t.Kind = wire.Kind
	t.union = wire.Detail
	return nil
}

func (t Event) decode(v any) error {
	if len(t.union) == 0 {
		return nil
	}
	return json.Unmarshal(t.union, v)
}
