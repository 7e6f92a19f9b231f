package payment

import (
	"context"
	"errors"
)

// EventCheckoutCompleted is the only provider event type that mutates the
// purchase ledger. Everything else is acknowledged and ignored.
const EventCheckoutCompleted = "checkout.session.completed"

// ErrSignatureVerification is returned when a webhook payload fails
// signature verification. Callers must not act on the payload in any way.
var ErrSignatureVerification = errors.New("webhook signature verification failed")

// CheckoutSession is the provider-hosted checkout page created for one
// purchase attempt. ID doubles as the ledger correlation/idempotency key.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutParams describes a single-item checkout for one course.
// UnitAmount is in the provider's minor currency unit (cents).
type CheckoutParams struct {
	CourseID    uint
	UserID      uint
	CourseTitle string
	UnitAmount  int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Event is a verified webhook notification from the provider.
// AmountTotal is the provider's reported charged total in minor units and is
// authoritative over the amount snapshotted at checkout time.
type Event struct {
	ID          string
	Type        string
	SessionID   string
	AmountTotal int64
	Raw         []byte
}

// Provider abstracts the payment gateway. The production implementation is
// Stripe; tests substitute a fake.
type Provider interface {
	// CreateCheckoutSession creates a provider-hosted checkout session.
	// The call must respect ctx cancellation/deadline.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// VerifyEvent verifies the raw webhook payload against the shared
	// secret and returns the decoded event. It returns an error wrapping
	// ErrSignatureVerification on any verification failure.
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
