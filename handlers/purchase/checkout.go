package purchase

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	purchasesvc "github.com/sahilchouksey/learnhub-api/services/purchase"
	"github.com/sahilchouksey/learnhub-api/utils/middleware"
	"github.com/sahilchouksey/learnhub-api/utils/response"
)

// PurchaseHandler handles checkout, access-status and purchase history requests
type PurchaseHandler struct {
	service *purchasesvc.Service
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(service *purchasesvc.Service) *PurchaseHandler {
	return &PurchaseHandler{
		service: service,
	}
}

// CreateCheckoutSession handles POST /api/v1/courses/:id/checkout
//
// Returns the provider-hosted checkout URL. The pending ledger row is
// durably recorded before the response is returned.
func (h *PurchaseHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	url, err := h.service.StartCheckout(c.UserContext(), userID, uint(courseID))
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, purchasesvc.ErrCourseIsFree):
			return response.BadRequest(c, "Course is free, no checkout required")
		case errors.Is(err, purchasesvc.ErrProviderFailure):
			return response.BadGateway(c, "Payment provider is unavailable, please try again")
		default:
			return response.InternalServerError(c, "Failed to start checkout")
		}
	}

	return response.Success(c, fiber.Map{"url": url})
}
