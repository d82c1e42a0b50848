package services

import (
	"errors"
	"net/http"

	"shop-service/repository"
)

// ServiceError carries an HTTP status and a visitor-safe message.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

var (
	// ErrPaymentNotConfigured means the Stripe keys are missing.
	ErrPaymentNotConfigured = errors.New("payment provider not configured")
	// ErrPaymentUnavailable means no payment provider is wired in.
	ErrPaymentUnavailable = errors.New("payment provider unavailable")
	// ErrPaymentSession wraps a failure to create the hosted payment session.
	ErrPaymentSession = errors.New("payment session creation failed")
	// ErrPaymentLookup wraps a failure to read back a payment session.
	ErrPaymentLookup = errors.New("payment session lookup failed")
	// ErrPaymentNotVerified means a success return could not be matched to a
	// paid provider session.
	ErrPaymentNotVerified = errors.New("payment not verified")
)

// ToServiceError maps service and repository errors to HTTP-facing errors.
func ToServiceError(err error) *ServiceError {
	var se *ServiceError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return se
	case errors.Is(err, ErrPaymentNotConfigured):
		return &ServiceError{StatusCode: http.StatusServiceUnavailable, Err: err,
			Message: "Stripe configuration is missing. Please contact the site administrator to set up Stripe keys in Shop Settings."}
	case errors.Is(err, ErrPaymentUnavailable):
		return &ServiceError{StatusCode: http.StatusServiceUnavailable, Err: err,
			Message: "The payment provider integration is unavailable. Please contact the site administrator."}
	case errors.Is(err, ErrPaymentSession):
		return &ServiceError{StatusCode: http.StatusBadGateway, Err: err,
			Message: "Error creating Stripe checkout session: " + causeMessage(err)}
	case errors.Is(err, ErrPaymentNotVerified):
		return &ServiceError{StatusCode: http.StatusPaymentRequired, Err: err,
			Message: "We could not confirm your payment. Your cart has been kept, please try again or contact us."}
	case errors.Is(err, repository.ErrProductNotFound):
		return &ServiceError{StatusCode: http.StatusNotFound, Err: err, Message: "Product not found"}
	default:
		return &ServiceError{StatusCode: http.StatusInternalServerError, Err: err, Message: "Internal server error"}
	}
}

// causeMessage returns the provider's own message for a session failure.
func causeMessage(err error) string {
	var pe *providerError
	if errors.As(err, &pe) {
		return pe.cause.Error()
	}
	return err.Error()
}

// providerError ties a provider failure to ErrPaymentSession while keeping
// the provider's own message.
type providerError struct {
	cause error
}

func (e *providerError) Error() string {
	return ErrPaymentSession.Error() + ": " + e.cause.Error()
}

func (e *providerError) Unwrap() []error {
	return []error{ErrPaymentSession, e.cause}
}
