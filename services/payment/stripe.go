package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/webhook"
)

// SessionCreateTimeout bounds the outbound session-creation call so a slow
// provider surfaces as an upstream error instead of hanging the request.
const SessionCreateTimeout = 15 * time.Second

// StripeProvider implements Provider using Stripe Checkout
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider configures the global Stripe client and returns a provider
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	stripe.Key = secretKey
	stripe.SetHTTPClient(&http.Client{Timeout: SessionCreateTimeout})

	return &StripeProvider{
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession creates a Stripe Checkout session for a single course
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(params.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.CourseTitle),
					},
					UnitAmount: stripe.Int64(params.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sessionParams.AddMetadata("course_id", strconv.FormatUint(uint64(params.CourseID), 10))
	sessionParams.AddMetadata("user_id", strconv.FormatUint(uint64(params.UserID), 10))

	s, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session creation failed: %w", err)
	}

	return &CheckoutSession{
		ID:  s.ID,
		URL: s.URL,
	}, nil
}

// VerifyEvent verifies the Stripe-Signature header against the webhook
// secret and decodes the event. Nothing from an unverified payload escapes
// this function.
func (p *StripeProvider) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	out := &Event{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  event.Data.Raw,
	}

	if out.Type == EventCheckoutCompleted {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("malformed checkout session payload: %w", err)
		}
		out.SessionID = cs.ID
		out.AmountTotal = cs.AmountTotal
	}

	return out, nil
}
