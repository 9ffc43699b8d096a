package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// DecodeMerchantSession decodes the base64 merchant session issued by the
// backend and parses it as a JSON object. Anything else is rejected with
// [ErrMalformedMerchantSession].
func DecodeMerchantSession(encoded string) (MerchantSession, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedMerchantSession)
	}
	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMerchantSession, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var session MerchantSession
	if err := dec.Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMerchantSession, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", ErrMalformedMerchantSession)
	}
	if len(session) == 0 {
		return nil, fmt.Errorf("%w: empty session object", ErrMalformedMerchantSession)
	}
	return session, nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (c *Coordinator) handleValidateMerchant(s *session, ev Event) {
	payload, err := ev.AsValidateMerchant()
	if err == nil && payload.ValidationURL == "" {
		err = fmt.Errorf("validation URL is required")
	}
	if err != nil {
		c.fail(s, CategoryMerchantValidation, "validate merchant", err)
		return
	}
	c.mu.Lock()
	orderID := s.orderID
	c.mu.Unlock()

	merchantSession, err := c.exchangeMerchantValidation(s.ctx, MerchantValidationRequest{
		ValidationURL:  payload.ValidationURL,
		OrderID:        orderID,
		MerchantDomain: c.cfg.merchantDomain,
	})
	if err != nil {
		c.fail(s, CategoryMerchantValidation, "validate merchant", err)
		return
	}
	sheet, ok := c.sheetFor(s)
	if !ok {
		return
	}
	if err := sheet.CompleteMerchantValidation(merchantSession); err != nil {
		c.fail(s, CategoryMerchantValidation, "complete merchant validation", err)
	}
}

func (c *Coordinator) exchangeMerchantValidation(ctx context.Context, req MerchantValidationRequest) (MerchantSession, error) {
	ctx, span := c.tracer.Start(ctx, "wallet.merchant_validation")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.order_id", req.OrderID))

	encoded, err := c.backend.ExchangeMerchantValidation(ctx, req)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	session, err := DecodeMerchantSession(encoded)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return session, nil
}
