package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/learnhub-api/config"
	"github.com/sahilchouksey/learnhub-api/database"
	"github.com/sahilchouksey/learnhub-api/handlers"
	admin_handlers "github.com/sahilchouksey/learnhub-api/handlers/admin"
	auth_handlers "github.com/sahilchouksey/learnhub-api/handlers/auth"
	course_handlers "github.com/sahilchouksey/learnhub-api/handlers/course"
	purchase_handlers "github.com/sahilchouksey/learnhub-api/handlers/purchase"
	"github.com/sahilchouksey/learnhub-api/services/payment"
	purchasesvc "github.com/sahilchouksey/learnhub-api/services/purchase"
	"github.com/sahilchouksey/learnhub-api/services/storage"
	"github.com/sahilchouksey/learnhub-api/utils/auth"
	"github.com/sahilchouksey/learnhub-api/utils/cache"
	"github.com/sahilchouksey/learnhub-api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store *database.GORMStore) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load environment configuration")
	}

	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "learnhub-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := store.GetDB()

	// Initialize Redis cache for brute force protection and access caching
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection and access caching will be disabled.", err)
		redisCache = nil
	}

	// Initialize brute force protection
	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize payment provider and the purchase service around it
	if getEnv.STRIPE_SECRET_KEY == "" {
		log.Fatal("STRIPE_SECRET_KEY environment variable is not set")
	}
	if getEnv.STRIPE_WEBHOOK_SECRET == "" {
		log.Fatal("STRIPE_WEBHOOK_SECRET environment variable is not set")
	}
	stripeProvider := payment.NewStripeProvider(getEnv.STRIPE_SECRET_KEY, getEnv.STRIPE_WEBHOOK_SECRET)
	purchaseService := purchasesvc.NewService(db, stripeProvider, redisCache,
		getEnv.CHECKOUT_SUCCESS_URL, getEnv.CHECKOUT_CANCEL_URL)

	// Initialize Spaces media storage (optional)
	var spacesClient *storage.SpacesClient
	if getEnv.SPACES_ACCESS_KEY != "" {
		spacesClient, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: getEnv.SPACES_ACCESS_KEY,
			SecretKey: getEnv.SPACES_SECRET_KEY,
			Bucket:    getEnv.SPACES_BUCKET,
			Region:    getEnv.SPACES_REGION,
			Endpoint:  getEnv.SPACES_ENDPOINT,
			CDNURL:    getEnv.SPACES_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize Spaces storage: %v. Media upload will be disabled.", err)
		}
	} else {
		log.Println("Spaces credentials not configured, media upload disabled")
	}

	// Initialize handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(db)
	lectureHandler := course_handlers.NewLectureHandler(db, spacesClient)
	purchaseHandler := purchase_handlers.NewPurchaseHandler(purchaseService)
	webhookHandler := purchase_handlers.NewWebhookHandler(db, stripeProvider, purchaseService)
	enrollmentHandler := admin_handlers.NewEnrollmentHandler(purchaseService)

	// Apply security middleware
	allowedOrigins := getEnv.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Payment provider webhook. No auth middleware: the provider signs the
	// payload instead, and the handler verifies that signature itself. The
	// route is also excluded from the rate limiter so redelivery bursts are
	// never throttled.
	api.Post("/payments/webhook", webhookHandler.HandleProviderEvent)

	// Courses routes
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)                                                // Public: published catalog
	courses.Get("/mine", authMiddleware.RequireInstructor(), courseHandler.ListMyCourses)      // Instructor: own courses incl. drafts
	courses.Get("/:id", courseHandler.GetCourse)                                               // Public: course detail
	courses.Post("/", authMiddleware.RequireInstructor(), courseHandler.CreateCourse)          // Instructor: create draft
	courses.Put("/:id", authMiddleware.RequireInstructor(), courseHandler.UpdateCourse)        // Instructor: update own course
	courses.Delete("/:id", authMiddleware.RequireInstructor(), courseHandler.DeleteCourse)     // Instructor: delete own course
	courses.Post("/:id/checkout", authMiddleware.Required(), purchaseHandler.CreateCheckoutSession)
	courses.Get("/:id/status", authMiddleware.Required(), purchaseHandler.GetCourseStatus)

	// Lecture routes (nested under courses, instructor only)
	lectures := courses.Group("/:id/lectures", authMiddleware.RequireInstructor())
	lectures.Post("/", lectureHandler.CreateLecture)
	lectures.Put("/:lectureID", lectureHandler.UpdateLecture)
	lectures.Delete("/:lectureID", lectureHandler.DeleteLecture)
	lectures.Post("/:lectureID/video", lectureHandler.UploadLectureVideo)

	// Purchase history
	api.Get("/purchases/me", authMiddleware.Required(), purchaseHandler.ListMyPurchases)

	// Admin routes
	adminGroup := api.Group("/admin", authMiddleware.RequireAdmin())
	adminGroup.Post("/enrollments", enrollmentHandler.ManualEnroll)
}
