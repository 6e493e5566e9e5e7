package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrItemNotFound          = errors.New("item not found")
	ErrPriceMismatch         = errors.New("item price mismatch")
	ErrEnrollmentNotFound    = errors.New("enrollment not found")
	ErrProviderUnsupported   = errors.New("provider is not supported")
	ErrInvalidSignature      = errors.New("invalid notification signature")
	ErrMalformedNotification = errors.New("malformed notification payload")
	ErrInconsistentState     = errors.New("inconsistent enrollment state")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrStoreUnavailable      = errors.New("enrollment store unavailable")
)

// storeErr marks a store failure as retryable for the caller or the
// provider's redelivery policy.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func gatewayErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
