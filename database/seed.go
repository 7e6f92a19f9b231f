package database

import (
	"fmt"
	"log"
	"os"

	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedInstructor(); err != nil {
		return fmt.Errorf("failed to seed instructor: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	// Check if admin already exists
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	// Get admin credentials from environment variables
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	// Hash password
	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         model.RoleAdmin,
		TokenVersion: 0,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedInstructor creates a demo instructor account
func (s *Seeder) SeedInstructor() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleInstructor).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Instructor already exists, skipping...")
		return nil
	}

	passwordHash, err := auth.HashPassword("instructor123")
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	instructor := &model.User{
		Email:        "instructor@learnhub.dev",
		PasswordHash: passwordHash,
		Name:         "Demo Instructor",
		Role:         model.RoleInstructor,
		TokenVersion: 0,
	}

	if err := s.db.Create(instructor).Error; err != nil {
		return err
	}

	log.Printf("✅ Created instructor: %s\n", instructor.Email)
	return nil
}

// SeedCourses creates sample published courses with lectures
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	var instructor model.User
	if err := s.db.Where("role = ?", model.RoleInstructor).First(&instructor).Error; err != nil {
		log.Println("⚠️  No instructor found, skipping course seeding")
		return nil
	}

	courses := []model.Course{
		{
			InstructorID: instructor.ID,
			Title:        "Go for Backend Engineers",
			Description:  "Build production HTTP services in Go, from routing to deployment.",
			Category:     "programming",
			Price:        49.99,
			Published:    true,
			Lectures: []model.Lecture{
				{Title: "Course Introduction", Position: 0, Duration: 420, IsFreePreview: true},
				{Title: "Project Layout and Tooling", Position: 1, Duration: 1260},
				{Title: "HTTP Servers and Middleware", Position: 2, Duration: 1810},
				{Title: "Persistence with GORM", Position: 3, Duration: 2100},
			},
		},
		{
			InstructorID: instructor.ID,
			Title:        "PostgreSQL Deep Dive",
			Description:  "Indexes, transactions, and query planning for application developers.",
			Category:     "databases",
			Price:        39.99,
			Published:    true,
			Lectures: []model.Lecture{
				{Title: "Why PostgreSQL", Position: 0, Duration: 380, IsFreePreview: true},
				{Title: "Transactions and Isolation", Position: 1, Duration: 1540},
				{Title: "Indexing Strategies", Position: 2, Duration: 1720},
			},
		},
		{
			InstructorID: instructor.ID,
			Title:        "Intro to Web Development",
			Description:  "A free starter course covering HTML, CSS, and basic JavaScript.",
			Category:     "programming",
			Price:        0,
			Published:    true,
			Lectures: []model.Lecture{
				{Title: "How the Web Works", Position: 0, Duration: 600, IsFreePreview: true},
				{Title: "Your First Page", Position: 1, Duration: 900, IsFreePreview: true},
			},
		},
	}

	for i := range courses {
		if err := s.db.Create(&courses[i]).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Created %d sample courses\n", len(courses))
	return nil
}

// RunSeeds runs all database seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
