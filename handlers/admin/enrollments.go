package admin

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	purchasesvc "github.com/sahilchouksey/learnhub-api/services/purchase"
	"github.com/sahilchouksey/learnhub-api/utils/response"
	"github.com/sahilchouksey/learnhub-api/utils/validation"
)

// EnrollmentHandler exposes the admin escape hatch for granting course
// access without a payment.
type EnrollmentHandler struct {
	service   *purchasesvc.Service
	validator *validation.Validator
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(service *purchasesvc.Service) *EnrollmentHandler {
	return &EnrollmentHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// ManualEnrollRequest represents a manual enrollment request
type ManualEnrollRequest struct {
	UserID   uint `json:"user_id" validate:"required,min=1"`
	CourseID uint `json:"course_id" validate:"required,min=1"`
}

// ManualEnroll handles POST /api/v1/admin/enrollments
//
// Grants enrollment directly, bypassing the payment flow. Idempotent: an
// already-enrolled user is a success, not a conflict.
func (h *EnrollmentHandler) ManualEnroll(c *fiber.Ctx) error {
	var req ManualEnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.service.ManualEnroll(c.UserContext(), req.UserID, req.CourseID); err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, purchasesvc.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		default:
			return response.InternalServerError(c, "Failed to enroll user")
		}
	}

	return response.SuccessWithMessage(c, "User enrolled successfully", fiber.Map{
		"user_id":   req.UserID,
		"course_id": req.CourseID,
	})
}
