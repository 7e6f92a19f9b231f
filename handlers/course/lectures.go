package course

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/services/storage"
	"github.com/sahilchouksey/learnhub-api/utils/response"
	"github.com/sahilchouksey/learnhub-api/utils/validation"
	"gorm.io/gorm"
)

// LectureHandler handles lecture management within a course
type LectureHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	storage   *storage.SpacesClient // optional, nil disables media upload
}

// NewLectureHandler creates a new lecture handler
func NewLectureHandler(db *gorm.DB, spaces *storage.SpacesClient) *LectureHandler {
	return &LectureHandler{
		db:        db,
		validator: validation.NewValidator(),
		storage:   spaces,
	}
}

// CreateLectureRequest represents the request body for creating a lecture
type CreateLectureRequest struct {
	Title         string `json:"title" validate:"required,min=3,max=255"`
	Position      int    `json:"position" validate:"min=0"`
	VideoURL      string `json:"video_url" validate:"omitempty,url"`
	Duration      int    `json:"duration" validate:"min=0"`
	IsFreePreview bool   `json:"is_free_preview"`
}

// UpdateLectureRequest represents the request body for updating a lecture
type UpdateLectureRequest struct {
	Title         string `json:"title" validate:"omitempty,min=3,max=255"`
	Position      *int   `json:"position" validate:"omitempty,min=0"`
	VideoURL      string `json:"video_url" validate:"omitempty,url"`
	Duration      *int   `json:"duration" validate:"omitempty,min=0"`
	IsFreePreview *bool  `json:"is_free_preview"`
}

// loadOwnedCourse fetches the course and enforces the management check shared
// with the course handlers.
func (h *LectureHandler) loadOwnedCourse(c *fiber.Ctx) (*model.Course, error) {
	var course model.Course
	if err := h.db.First(&course, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, response.NotFound(c, "Course not found")
		}
		return nil, response.InternalServerError(c, "Failed to fetch course")
	}

	if !canManage(c, &course) {
		return nil, response.Forbidden(c, "Not allowed to modify this course")
	}

	return &course, nil
}

// CreateLecture handles POST /api/v1/courses/:id/lectures
func (h *LectureHandler) CreateLecture(c *fiber.Ctx) error {
	course, err := h.loadOwnedCourse(c)
	if course == nil {
		return err
	}

	var req CreateLectureRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	lecture := model.Lecture{
		CourseID:      course.ID,
		Title:         validation.SanitizeString(req.Title),
		Position:      req.Position,
		VideoURL:      req.VideoURL,
		Duration:      req.Duration,
		IsFreePreview: req.IsFreePreview,
	}

	if err := h.db.Create(&lecture).Error; err != nil {
		return response.InternalServerError(c, "Failed to create lecture")
	}

	return response.Created(c, lecture)
}

// UpdateLecture handles PUT /api/v1/courses/:id/lectures/:lectureID
func (h *LectureHandler) UpdateLecture(c *fiber.Ctx) error {
	course, err := h.loadOwnedCourse(c)
	if course == nil {
		return err
	}

	var req UpdateLectureRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var lecture model.Lecture
	if err := h.db.Where("course_id = ?", course.ID).
		First(&lecture, c.Params("lectureID")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lecture not found")
		}
		return response.InternalServerError(c, "Failed to fetch lecture")
	}

	if req.Title != "" {
		lecture.Title = validation.SanitizeString(req.Title)
	}
	if req.Position != nil {
		lecture.Position = *req.Position
	}
	if req.VideoURL != "" {
		lecture.VideoURL = req.VideoURL
	}
	if req.Duration != nil {
		lecture.Duration = *req.Duration
	}
	if req.IsFreePreview != nil {
		lecture.IsFreePreview = *req.IsFreePreview
	}

	if err := h.db.Save(&lecture).Error; err != nil {
		return response.InternalServerError(c, "Failed to update lecture")
	}

	return response.SuccessWithMessage(c, "Lecture updated successfully", lecture)
}

// DeleteLecture handles DELETE /api/v1/courses/:id/lectures/:lectureID
func (h *LectureHandler) DeleteLecture(c *fiber.Ctx) error {
	course, err := h.loadOwnedCourse(c)
	if course == nil {
		return err
	}

	var lecture model.Lecture
	if err := h.db.Where("course_id = ?", course.ID).
		First(&lecture, c.Params("lectureID")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lecture not found")
		}
		return response.InternalServerError(c, "Failed to fetch lecture")
	}

	if err := h.db.Delete(&lecture).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete lecture")
	}

	return response.SuccessWithMessage(c, "Lecture deleted successfully", nil)
}

// UploadLectureVideo handles POST /api/v1/courses/:id/lectures/:lectureID/video
//
// Accepts a multipart "video" field, stores it in Spaces and persists the
// resulting URL on the lecture.
func (h *LectureHandler) UploadLectureVideo(c *fiber.Ctx) error {
	if h.storage == nil {
		return response.InternalServerError(c, "Media storage is not configured")
	}

	course, err := h.loadOwnedCourse(c)
	if course == nil {
		return err
	}

	var lecture model.Lecture
	if err := h.db.Where("course_id = ?", course.ID).
		First(&lecture, c.Params("lectureID")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lecture not found")
		}
		return response.InternalServerError(c, "Failed to fetch lecture")
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		return response.BadRequest(c, "Missing video file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read video file")
	}
	defer file.Close()

	key := storage.LectureVideoKey(course.ID, lecture.ID, fileHeader.Filename)
	url, err := h.storage.UploadFile(c.UserContext(), key, file, storage.GetContentType(fileHeader.Filename))
	if err != nil {
		return response.InternalServerError(c, "Failed to upload video")
	}

	lecture.VideoURL = url
	if err := h.db.Save(&lecture).Error; err != nil {
		return response.InternalServerError(c, "Failed to save lecture video URL")
	}

	return response.SuccessWithMessage(c, "Video uploaded successfully", lecture)
}
