package purchase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/services/payment"
	"github.com/sahilchouksey/learnhub-api/utils/cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrCourseIsFree     = errors.New("course is free, no checkout required")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrProviderFailure  = errors.New("payment provider request failed")
)

// AccessCacheTTL bounds how long a positive access result lives in Redis.
// Only positive results are cached: caching "not purchased" would delay the
// pending-to-completed flip the client poll loop is waiting for.
const AccessCacheTTL = 12 * time.Hour

// Service owns the purchase ledger: checkout initiation, webhook-driven
// completion, access-status queries and the maintenance sweeps.
type Service struct {
	db       *gorm.DB
	provider payment.Provider
	cache    *cache.RedisCache // optional, nil disables access caching

	successURL string
	cancelURL  string
}

// NewService creates a purchase service. successURL and cancelURL are
// redirect templates containing a {COURSE_ID} placeholder.
func NewService(db *gorm.DB, provider payment.Provider, redisCache *cache.RedisCache, successURL, cancelURL string) *Service {
	return &Service{
		db:         db,
		provider:   provider,
		cache:      redisCache,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// MinorUnits converts a price in base currency units to the provider's minor
// unit (cents), rounding to the nearest integer.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// StartCheckout creates a provider checkout session for the course and
// records a pending ledger row keyed by the session id. The row is inserted
// only after the provider confirms session creation, so an upstream failure
// leaves no trace in the ledger. If the insert itself fails the session is
// orphaned at the provider; its completion event will find no row (a logged
// anomaly), and with no ledger row no access is ever granted. Each call gets
// its own row and session; a stale abandoned pending row never transitions
// and never grants access.
func (s *Service) StartCheckout(ctx context.Context, userID, courseID uint) (string, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCourseNotFound
		}
		return "", err
	}

	if course.Price == 0 {
		return "", ErrCourseIsFree
	}

	sessionCtx, cancel := context.WithTimeout(ctx, payment.SessionCreateTimeout)
	defer cancel()

	sess, err := s.provider.CreateCheckoutSession(sessionCtx, payment.CheckoutParams{
		CourseID:    course.ID,
		UserID:      userID,
		CourseTitle: course.Title,
		UnitAmount:  MinorUnits(course.Price),
		Currency:    "usd",
		SuccessURL:  expandCourseURL(s.successURL, course.ID),
		CancelURL:   expandCourseURL(s.cancelURL, course.ID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	row := model.Purchase{
		UserID:    userID,
		CourseID:  course.ID,
		Amount:    course.Price, // snapshot; the webhook overwrites with the provider total
		Currency:  "usd",
		Status:    model.PurchaseStatusPending,
		PaymentID: sess.ID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		// The provider session exists but we could not record it. The
		// session will never reconcile; surface the failure to the caller.
		log.Printf("[purchase] failed to record pending ledger row for session %s: %v", sess.ID, err)
		return "", err
	}

	return sess.URL, nil
}

// CompleteCheckout transitions the ledger row for the given provider session
// to completed and grants course access. It is safe to invoke repeatedly for
// the same session: the status update is conditional, and the enrollment
// grant uses add-if-absent semantics. amountTotal is the provider's reported
// charged total in minor units and overwrites the checkout-time snapshot.
func (s *Service) CompleteCheckout(ctx context.Context, sessionID string, amountTotal int64) error {
	var row model.Purchase
	if err := s.db.WithContext(ctx).Where("payment_id = ?", sessionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPurchaseNotFound
		}
		return err
	}

	amount := float64(amountTotal) / 100

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional update: a row already completed is left untouched, so
		// concurrent duplicate deliveries converge without double-counting.
		// A row the expiry sweep marked failed is still completed here --
		// the provider's verified event proves the charge went through.
		res := tx.Model(&model.Purchase{}).
			Where("payment_id = ? AND status <> ?", sessionID, model.PurchaseStatusCompleted).
			Updates(map[string]interface{}{
				"status":       model.PurchaseStatusCompleted,
				"amount":       amount,
				"completed_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}

		// The grant runs even when the status update was a no-op: if an
		// earlier delivery crashed between the ledger write and the grant,
		// the redelivery repairs the enrollment.
		return grantAccess(tx, row.UserID, row.CourseID)
	})
	if err != nil {
		return err
	}

	s.cacheAccess(ctx, row.UserID, row.CourseID)
	return nil
}

// AccessStatus returns the course plus whether the user has purchased it.
// Purchased is true iff a completed ledger row exists for the pair; a
// pending row is not access. The ledger status is the source of truth here,
// not the denormalized enrollment rows, so a crash between the ledger write
// and the enrollment grant never hides a paid purchase.
func (s *Service) AccessStatus(ctx context.Context, userID, courseID uint) (*model.Course, bool, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).Preload("Lectures", func(db *gorm.DB) *gorm.DB {
		return db.Order("lectures.position ASC")
	}).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrCourseNotFound
		}
		return nil, false, err
	}

	if s.cachedAccess(ctx, userID, courseID) {
		return &course, true, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
		Count(&count).Error
	if err != nil {
		return nil, false, err
	}

	purchased := count > 0
	if purchased {
		s.cacheAccess(ctx, userID, courseID)
	}

	return &course, purchased, nil
}

// ListByUser returns the user's purchase history, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uint) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

// ManualEnroll grants enrollment without a purchase. Admin-only escape hatch
// for support and testing.
func (s *Service) ManualEnroll(ctx context.Context, userID, courseID uint) error {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return grantAccess(tx, userID, courseID)
	})
}

// ExpireStalePending sweeps pending rows older than the given window to
// failed. Abandoned checkouts otherwise sit pending forever; a late webhook
// for a swept row still completes it.
func (s *Service) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("status = ? AND created_at < ?", model.PurchaseStatusPending, time.Now().Add(-olderThan)).
		Update("status", model.PurchaseStatusFailed)
	return res.RowsAffected, res.Error
}

// HealEnrollments repairs completed purchases that are missing their
// enrollment row. The enrollment rows are a rebuildable read-optimization
// over the ledger; this sweep removes the need for perfect atomicity across
// the ledger write and the grant.
func (s *Service) HealEnrollments(ctx context.Context) (int64, error) {
	var orphans []model.Purchase
	err := s.db.WithContext(ctx).Model(&model.Purchase{}).
		Joins("LEFT JOIN user_courses uc ON uc.user_id = purchases.user_id AND uc.course_id = purchases.course_id").
		Where("purchases.status = ? AND uc.user_id IS NULL", model.PurchaseStatusCompleted).
		Find(&orphans).Error
	if err != nil {
		return 0, err
	}

	var healed int64
	for _, p := range orphans {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return grantAccess(tx, p.UserID, p.CourseID)
		})
		if err != nil {
			log.Printf("[purchase] failed to heal enrollment for purchase %d: %v", p.ID, err)
			continue
		}
		healed++
	}

	return healed, nil
}

// grantAccess performs the repeatable enrollment mutation: an add-if-absent
// enrollment row and unlocking the course's lectures for playback. Applying
// it twice leaves the same state as applying it once.
func grantAccess(tx *gorm.DB, userID, courseID uint) error {
	enrollment := model.UserCourse{UserID: userID, CourseID: courseID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment).Error; err != nil {
		return err
	}

	return tx.Model(&model.Lecture{}).
		Where("course_id = ? AND is_free_preview = ?", courseID, false).
		Update("is_free_preview", true).Error
}

func (s *Service) cacheAccess(ctx context.Context, userID, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, accessCacheKey(userID, courseID), "1", AccessCacheTTL); err != nil {
		log.Printf("[purchase] failed to cache access for user %d course %d: %v", userID, courseID, err)
	}
}

func (s *Service) cachedAccess(ctx context.Context, userID, courseID uint) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Exists(ctx, accessCacheKey(userID, courseID))
	if err != nil {
		return false
	}
	return ok
}

func accessCacheKey(userID, courseID uint) string {
	return fmt.Sprintf("purchase:access:%d:%d", userID, courseID)
}

func expandCourseURL(template string, courseID uint) string {
	return strings.ReplaceAll(template, "{COURSE_ID}", strconv.FormatUint(uint64(courseID), 10))
}
