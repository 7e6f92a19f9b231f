package model

import (
	"time"

	"gorm.io/gorm"
)

// Course represents a sellable course in the catalog
type Course struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	InstructorID uint           `gorm:"not null;index" json:"instructor_id"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Category     string         `gorm:"type:varchar(100)" json:"category"`
	Thumbnail    string         `json:"thumbnail"`
	// Price in base currency units. Zero marks a free course. In-flight
	// purchases snapshot the price at checkout time, so editing this field
	// never changes what was already charged.
	Price     float64 `gorm:"not null;default:0;check:price >= 0" json:"price"`
	Published bool    `gorm:"default:false;index" json:"published"`

	// Relationships
	Instructor  User         `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Lectures    []Lecture    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"lectures,omitempty"`
	Enrollments []UserCourse `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Purchases   []Purchase   `gorm:"foreignKey:CourseID" json:"-"`
}

// Lecture represents a single video lecture within a course
type Lecture struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"not null" json:"title"`
	Position  int            `gorm:"default:0" json:"position"`
	VideoURL  string         `json:"video_url"`
	Duration  int            `gorm:"default:0" json:"duration"` // seconds
	// Free-preview lectures are served without an access check
	IsFreePreview bool `gorm:"default:false" json:"is_free_preview"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
