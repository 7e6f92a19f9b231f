package purchase

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	purchasesvc "github.com/sahilchouksey/learnhub-api/services/purchase"
	"github.com/sahilchouksey/learnhub-api/utils/middleware"
	"github.com/sahilchouksey/learnhub-api/utils/response"
)

// GetCourseStatus handles GET /api/v1/courses/:id/status
//
// Returns the course plus a purchased flag. Purchased is true iff a
// completed purchase exists for (user, course); a pending purchase reports
// false. Read-only and cheap: it backs the client's post-redirect poll loop.
func (h *PurchaseHandler) GetCourseStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	course, purchased, err := h.service.AccessStatus(c.UserContext(), userID, uint(courseID))
	if err != nil {
		if errors.Is(err, purchasesvc.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course status")
	}

	return response.Success(c, fiber.Map{
		"course":    course,
		"purchased": purchased,
	})
}

// ListMyPurchases handles GET /api/v1/purchases/me
func (h *PurchaseHandler) ListMyPurchases(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	purchases, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch purchases")
	}

	return response.Success(c, purchases)
}
