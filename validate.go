package wallet

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	currencyPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
	postalCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,14}[A-Za-z0-9]$`)
	validate          = newValidator()
)

// Countries whose addresses cannot be served without a postal code.
var postalCodeCountries = map[string]bool{
	"US": true, "CA": true, "GB": true, "DE": true, "FR": true, "IT": true,
	"ES": true, "NL": true, "AU": true, "JP": true, "BR": true, "PL": true,
}

// Validate ensures the request is complete before it reaches a provider.
func (r ShippingChangeRequest) Validate() error {
	return validateStruct(r)
}

// Validate ensures the request carries a usable validation URL.
func (r MerchantValidationRequest) Validate() error {
	return validateStruct(r)
}

// Validate ensures the payment carries a token and normalized contacts.
func (p Payment) Validate() error {
	return validateStruct(p)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

// contactRules is the structural view of a shipping contact the sheet delivers
// during negotiation. The sheet redacts street lines until authorization, so
// only the fields present at that point are checked.
type contactRules struct {
	Locality           string `json:"locality" validate:"required,max=128"`
	AdministrativeArea string `json:"administrativeArea" validate:"omitempty,max=64"`
	PostalCode         string `json:"postalCode" validate:"omitempty,postal"`
	CountryCode        string `json:"countryCode" validate:"required,len=2,alpha"`
}

// ValidateShippingContact runs the local structural checks on a candidate
// shipping contact. It returns the sheet errors to reflect when the contact is
// unusable, or the backend projection of the address when it is valid.
func ValidateShippingContact(contact *PaymentContact) (*ShippingAddress, []SheetError) {
	if contact == nil {
		return nil, []SheetError{{
			Code:         ShippingContactInvalid,
			ContactField: ContactFieldPostalAddress,
			Message:      "Shipping address is required",
		}}
	}
	rules := contactRules{
		Locality:           strings.TrimSpace(contact.Locality),
		AdministrativeArea: strings.TrimSpace(contact.AdministrativeArea),
		PostalCode:         strings.TrimSpace(contact.PostalCode),
		CountryCode:        strings.ToUpper(strings.TrimSpace(contact.CountryCode)),
	}
	var sheetErrs []SheetError
	if err := validate.Struct(rules); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return nil, []SheetError{{Code: UnknownSheetError, Message: err.Error()}}
		}
		for _, fe := range validationErrs {
			sheetErrs = append(sheetErrs, contactSheetError(fe))
		}
	}
	if rules.PostalCode == "" && postalCodeCountries[rules.CountryCode] {
		sheetErrs = append(sheetErrs, SheetError{
			Code:         ShippingContactInvalid,
			ContactField: ContactFieldPostalCode,
			Message:      "Postal code is required",
		})
	}
	if len(sheetErrs) > 0 {
		return nil, sheetErrs
	}
	return &ShippingAddress{
		City:        rules.Locality,
		State:       rules.AdministrativeArea,
		CountryCode: rules.CountryCode,
		PostalCode:  rules.PostalCode,
	}, nil
}

func contactSheetError(fe validator.FieldError) SheetError {
	field := ContactField(fe.Field())
	var message string
	switch field {
	case ContactFieldCountryCode:
		message = "Country is invalid"
		if fe.Tag() == "required" {
			message = "Country is required"
		}
	case ContactFieldPostalCode:
		message = "Postal code is invalid"
	case ContactFieldLocality:
		message = "City is required"
		if fe.Tag() != "required" {
			message = "City is invalid"
		}
	case ContactFieldAdministrativeArea:
		message = "State is invalid"
	default:
		field = ContactFieldPostalAddress
		message = "Shipping address is invalid"
	}
	return SheetError{Code: ShippingContactInvalid, ContactField: field, Message: message}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	if err := v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return currencyPattern.MatchString(value)
	}); err != nil {
		panic(err)
	}

	if err := v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return false
		}
		return !d.IsNegative()
	}); err != nil {
		panic(err)
	}

	if err := v.RegisterValidation("postal", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return postalCodePattern.MatchString(value)
	}); err != nil {
		panic(err)
	}

	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	first := validationErrs[0]
	fieldPath := jsonPath(first)
	message := validationMessage(first)
	return fmt.Errorf("%s %s", fieldPath, message)
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "must be a valid URL"
	case "currency":
		return "must be an uppercase 3-letter ISO-4217 code"
	case "amount":
		return "must be a non-negative decimal"
	case "uppercase":
		return "must be uppercase"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
