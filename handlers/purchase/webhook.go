package purchase

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/services/payment"
	purchasesvc "github.com/sahilchouksey/learnhub-api/services/purchase"
	"github.com/sahilchouksey/learnhub-api/utils/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookHandler receives asynchronous payment notifications from the
// provider and drives the pending-to-completed ledger transition.
type WebhookHandler struct {
	db       *gorm.DB
	provider payment.Provider
	service  *purchasesvc.Service
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(db *gorm.DB, provider payment.Provider, service *purchasesvc.Service) *WebhookHandler {
	return &WebhookHandler{
		db:       db,
		provider: provider,
		service:  service,
	}
}

// HandleProviderEvent handles POST /api/v1/payments/webhook.
//
// The payload is verified against the shared webhook secret before anything
// else happens; an unverified payload never touches the database. Verified
// events are logged to payment_gateway_events for audit and replay debugging.
// Response codes steer the provider's redelivery: 200 means handled (or
// intentionally ignored, or a duplicate no-op), 400 means never retry, 404
// means the event does not correlate to any ledger row (retrying will not
// fix it), 500 asks the provider to redeliver.
func (h *WebhookHandler) HandleProviderEvent(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("Stripe-Signature")

	event, err := h.provider.VerifyEvent(body, signature)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureVerification) {
			// Potential forgery attempt: anyone reaching this endpoint could
			// otherwise fabricate completions.
			log.Printf("[webhook] signature verification failed from %s: %v", c.IP(), err)
			return response.BadRequest(c, "Webhook signature verification failed")
		}
		log.Printf("[webhook] malformed event payload: %v", err)
		return response.BadRequest(c, "Malformed event payload")
	}

	if event.Type != payment.EventCheckoutCompleted {
		// Other event types are acknowledged, not errors.
		h.recordEvent(c, event, body, model.GatewayEventStatusIgnored, "")
		return response.Success(c, fiber.Map{"received": true})
	}

	err = h.service.CompleteCheckout(c.UserContext(), event.SessionID, event.AmountTotal)
	switch {
	case err == nil:
		h.recordEvent(c, event, body, model.GatewayEventStatusProcessed, "")
		return response.Success(c, fiber.Map{"received": true})

	case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
		// Correlation mismatch: a completed-checkout event for a session this
		// system never created. Redelivery will never resolve it.
		log.Printf("[webhook] no ledger row for session %s (event %s)", event.SessionID, event.ID)
		h.recordEvent(c, event, body, model.GatewayEventStatusFailed, "no purchase row for session")
		return response.NotFound(c, "Purchase not found for session")

	default:
		log.Printf("[webhook] failed to complete checkout for session %s: %v", event.SessionID, err)
		h.recordEvent(c, event, body, model.GatewayEventStatusFailed, err.Error())
		return response.InternalServerError(c, "Failed to process event")
	}
}

// recordEvent persists a verified gateway event. Logging failures never
// affect the webhook response.
func (h *WebhookHandler) recordEvent(c *fiber.Ctx, event *payment.Event, body []byte, status, errMsg string) {
	row := model.PaymentGatewayEvent{
		Provider:  "stripe",
		EventID:   event.ID,
		EventType: event.Type,
		SessionID: event.SessionID,
		Payload:   datatypes.JSON(body),
		Status:    status,
		Error:     errMsg,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&row).Error; err != nil {
		log.Printf("[webhook] failed to record gateway event %s: %v", event.ID, err)
	}
}
