package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/utils/auth"
	"github.com/sahilchouksey/learnhub-api/utils/response"
	"gorm.io/gorm"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
	db               *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:       jwtManager,
		blacklistService: auth.NewBlacklistService(db),
		db:               db,
	}
}

// authenticate validates the bearer token and populates the request locals.
// Returns ok=false after having already written the error response.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (bool, error) {
	// Get token from Authorization header
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return false, response.Unauthorized(c, "Missing authorization token")
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false, response.Unauthorized(c, "Invalid authorization format")
	}

	tokenString := parts[1]

	// Validate token
	claims, err := m.jwtManager.ValidateToken(tokenString)
	if err != nil {
		if err == auth.ErrExpiredToken {
			return false, response.Unauthorized(c, "Token has expired")
		}
		return false, response.Unauthorized(c, "Invalid token")
	}

	// Check if it's an access token
	if claims.TokenType != "access" {
		return false, response.Unauthorized(c, "Invalid token type")
	}

	// Check if token is revoked (blacklisted)
	isRevoked, err := m.blacklistService.IsTokenRevoked(c.UserContext(), claims.ID)
	if err != nil {
		return false, response.InternalServerError(c, "Failed to check token status")
	}
	if isRevoked {
		return false, response.Unauthorized(c, "Token has been revoked")
	}

	// Load user from database and verify token version
	var user model.User
	if err := m.db.First(&user, claims.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, response.Unauthorized(c, "User not found")
		}
		return false, response.InternalServerError(c, "Failed to load user")
	}

	// Check if token version matches
	if user.TokenVersion != claims.TokenVersion {
		return false, response.Unauthorized(c, "Token has been invalidated")
	}

	// Store user info and full user object in context
	c.Locals("user_id", claims.UserID)
	c.Locals("user_email", claims.Email)
	c.Locals("user_role", user.Role)
	c.Locals("claims", claims)
	c.Locals("user", &user)
	c.Locals("token_jti", claims.ID)

	return true, nil
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := m.authenticate(c)
		if !ok {
			return err
		}
		return c.Next()
	}
}

// RequireRole is the single capability check: it authenticates the request
// (unless an earlier middleware already did) and allows it only when the user
// holds one of the given roles. Route definitions chain it uniformly instead
// of repeating ad hoc role conditionals inside handlers.
func (m *AuthMiddleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			ok, err := m.authenticate(c)
			if !ok {
				return err
			}
		}

		userRole, ok := c.Locals("user_role").(string)
		if !ok || userRole == "" {
			return response.Forbidden(c, "Access denied")
		}

		for _, r := range roles {
			if userRole == r {
				return c.Next()
			}
		}

		return response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireInstructor requires the instructor or admin role
func (m *AuthMiddleware) RequireInstructor() fiber.Handler {
	return m.RequireRole(model.RoleInstructor, model.RoleAdmin)
}

// RequireAdmin requires the admin role
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return m.RequireRole(model.RoleAdmin)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *fiber.Ctx) (string, bool) {
	role := c.Locals("user_role")
	if role == nil {
		return "", false
	}
	r, ok := role.(string)
	return r, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetTokenJTI extracts the token JTI from context
func GetTokenJTI(c *fiber.Ctx) (string, bool) {
	jti := c.Locals("token_jti")
	if jti == nil {
		return "", false
	}
	j, ok := jti.(string)
	return j, ok
}
