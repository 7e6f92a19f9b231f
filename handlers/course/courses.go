package course

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/utils/middleware"
	"github.com/sahilchouksey/learnhub-api/utils/response"
	"github.com/sahilchouksey/learnhub-api/utils/validation"
	"gorm.io/gorm"
)

// CourseHandler handles course-related requests
type CourseHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description string  `json:"description" validate:"omitempty,max=5000"`
	Category    string  `json:"category" validate:"omitempty,max=100"`
	Thumbnail   string  `json:"thumbnail" validate:"omitempty,url"`
	Price       float64 `json:"price" validate:"min=0"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	Title       string   `json:"title" validate:"omitempty,min=3,max=255"`
	Description string   `json:"description" validate:"omitempty,max=5000"`
	Category    string   `json:"category" validate:"omitempty,max=100"`
	Thumbnail   string   `json:"thumbnail" validate:"omitempty,url"`
	Price       *float64 `json:"price" validate:"omitempty,min=0"`
	Published   *bool    `json:"published"`
}

// canManage reports whether the user may modify the course. Instructors own
// their courses; admins manage everything.
func canManage(c *fiber.Ctx, course *model.Course) bool {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return false
	}
	role, _ := middleware.GetUserRole(c)
	return role == model.RoleAdmin || course.InstructorID == userID
}

// ListCourses handles GET /api/v1/courses
//
// Only published courses appear in the public catalog.
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	// Parse query parameters
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")
	category := c.Query("category", "")

	// Build query
	query := h.db.Model(&model.Course{}).Where("published = ?", true)

	// Apply filters
	if search != "" {
		query = query.Where("title ILIKE ? OR description ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}

	if category != "" {
		query = query.Where("category = ?", category)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	// Calculate pagination
	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var courses []model.Course
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Paginated(c, courses, pagination)
}

// ListMyCourses handles GET /api/v1/courses/mine for instructors, including
// unpublished drafts.
func (h *CourseHandler) ListMyCourses(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var courses []model.Course
	if err := h.db.Where("instructor_id = ?", userID).
		Order("created_at DESC").
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Success(c, courses)
}

// GetCourse handles GET /api/v1/courses/:id
//
// Unpublished courses are visible only to their instructor and admins,
// reported as not found to everyone else.
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	var course model.Course
	if err := h.db.Preload("Lectures", func(db *gorm.DB) *gorm.DB {
		return db.Order("lectures.position ASC")
	}).First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if !course.Published && !canManage(c, &course) {
		return response.NotFound(c, "Course not found")
	}

	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	// Parse request body
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Validate request
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Sanitize inputs
	req.Title = validation.SanitizeString(req.Title)
	req.Description = validation.SanitizeString(req.Description)
	req.Category = validation.SanitizeString(req.Category)

	// Courses start as unpublished drafts
	course := model.Course{
		InstructorID: userID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Thumbnail:    req.Thumbnail,
		Price:        req.Price,
		Published:    false,
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	// Parse request body
	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Validate request
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Check if course exists
	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if !canManage(c, &course) {
		return response.Forbidden(c, "Not allowed to modify this course")
	}

	// Update fields if provided
	if req.Title != "" {
		course.Title = validation.SanitizeString(req.Title)
	}
	if req.Description != "" {
		course.Description = validation.SanitizeString(req.Description)
	}
	if req.Category != "" {
		course.Category = validation.SanitizeString(req.Category)
	}
	if req.Thumbnail != "" {
		course.Thumbnail = req.Thumbnail
	}
	if req.Price != nil {
		// Price changes affect future checkouts only; existing ledger rows
		// keep the amount the provider reported.
		course.Price = *req.Price
	}
	if req.Published != nil {
		course.Published = *req.Published
	}

	// Save changes
	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	// Check if course exists
	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if !canManage(c, &course) {
		return response.Forbidden(c, "Not allowed to delete this course")
	}

	// Courses with completed purchases stay; the ledger references them.
	var purchaseCount int64
	if err := h.db.Model(&model.Purchase{}).
		Where("course_id = ? AND status = ?", id, model.PurchaseStatusCompleted).
		Count(&purchaseCount).Error; err != nil {
		return response.InternalServerError(c, "Failed to check course purchases")
	}

	if purchaseCount > 0 {
		return response.BadRequest(c, "Cannot delete a course with completed purchases")
	}

	// Delete course (soft delete)
	if err := h.db.Delete(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}
