package purchase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sahilchouksey/learnhub-api/database"
	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/services/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeProvider satisfies payment.Provider without talking to Stripe
type fakeProvider struct {
	sessions int
	fail     bool
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	if f.fail {
		return nil, errors.New("provider unreachable")
	}
	f.sessions++
	return &payment.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", f.sessions),
		URL: fmt.Sprintf("https://checkout.example.com/pay/cs_test_%d", f.sessions),
	}, nil
}

func (f *fakeProvider) VerifyEvent(payload []byte, signatureHeader string) (*payment.Event, error) {
	return nil, errors.New("not implemented")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test User",
		Role:         model.RoleStudent,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createCourse(t *testing.T, db *gorm.DB, price float64) *model.Course {
	t.Helper()

	instructor := createUser(t, db, fmt.Sprintf("instructor-%d@test.dev", time.Now().UnixNano()))
	course := &model.Course{
		InstructorID: instructor.ID,
		Title:        "Test Course",
		Price:        price,
		Published:    true,
		Lectures: []model.Lecture{
			{Title: "Intro", Position: 0, IsFreePreview: true},
			{Title: "Deep Dive", Position: 1, IsFreePreview: false},
		},
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to create course: %v", err)
	}
	return course
}

func newTestService(db *gorm.DB, provider payment.Provider) *Service {
	return NewService(db, provider, nil,
		"http://localhost:3000/courses/{COURSE_ID}?payment=success",
		"http://localhost:3000/courses/{COURSE_ID}?payment=cancelled")
}

func TestStartCheckoutCreatesPendingRow(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{}
	svc := newTestService(db, provider)

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 49.99)

	url, err := svc.StartCheckout(context.Background(), user.ID, course.ID)
	if err != nil {
		t.Fatalf("StartCheckout failed: %v", err)
	}
	if url == "" {
		t.Fatal("expected a checkout URL")
	}

	var row model.Purchase
	if err := db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&row).Error; err != nil {
		t.Fatalf("expected a ledger row: %v", err)
	}
	if row.Status != model.PurchaseStatusPending {
		t.Errorf("expected status pending, got %s", row.Status)
	}
	if row.PaymentID == "" {
		t.Error("expected the session id on the ledger row")
	}
	if row.Amount != 49.99 {
		t.Errorf("expected amount snapshot 49.99, got %v", row.Amount)
	}
	if row.CompletedAt != nil {
		t.Error("pending row must not have a completion timestamp")
	}
}

func TestStartCheckoutFreeCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 0)

	_, err := svc.StartCheckout(context.Background(), user.ID, course.ID)
	if !errors.Is(err, ErrCourseIsFree) {
		t.Fatalf("expected ErrCourseIsFree, got %v", err)
	}

	var count int64
	db.Model(&model.Purchase{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no ledger rows, found %d", count)
	}
}

func TestStartCheckoutUnknownCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})
	user := createUser(t, db, "buyer@test.dev")

	_, err := svc.StartCheckout(context.Background(), user.ID, 9999)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestStartCheckoutProviderFailureWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{fail: true})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 19.99)

	_, err := svc.StartCheckout(context.Background(), user.ID, course.ID)
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}

	var count int64
	db.Model(&model.Purchase{}).Count(&count)
	if count != 0 {
		t.Errorf("provider failure must leave no ledger rows, found %d", count)
	}
}

func TestCompleteCheckoutIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 49.99)

	if _, err := svc.StartCheckout(context.Background(), user.ID, course.ID); err != nil {
		t.Fatalf("StartCheckout failed: %v", err)
	}

	var row model.Purchase
	db.Where("user_id = ?", user.ID).First(&row)

	// The provider reports a different total than the snapshot (a coupon was
	// applied at checkout); the reported total wins.
	for i := 0; i < 2; i++ {
		if err := svc.CompleteCheckout(context.Background(), row.PaymentID, 4499); err != nil {
			t.Fatalf("CompleteCheckout attempt %d failed: %v", i+1, err)
		}
	}

	var completed model.Purchase
	db.First(&completed, row.ID)
	if completed.Status != model.PurchaseStatusCompleted {
		t.Errorf("expected status completed, got %s", completed.Status)
	}
	if completed.Amount != 44.99 {
		t.Errorf("expected provider-reported amount 44.99, got %v", completed.Amount)
	}
	if completed.CompletedAt == nil {
		t.Error("expected a completion timestamp")
	}

	var enrollments int64
	db.Model(&model.UserCourse{}).Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("expected exactly one enrollment row, found %d", enrollments)
	}

	var ledgerRows int64
	db.Model(&model.Purchase{}).Where("user_id = ?", user.ID).Count(&ledgerRows)
	if ledgerRows != 1 {
		t.Errorf("duplicate completion must not add ledger rows, found %d", ledgerRows)
	}
}

func TestCompleteCheckoutUnknownSession(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	err := svc.CompleteCheckout(context.Background(), "cs_unknown", 1000)
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
}

func TestCompleteCheckoutUnlocksLectures(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 29.99)

	if _, err := svc.StartCheckout(context.Background(), user.ID, course.ID); err != nil {
		t.Fatalf("StartCheckout failed: %v", err)
	}

	var row model.Purchase
	db.Where("user_id = ?", user.ID).First(&row)

	if err := svc.CompleteCheckout(context.Background(), row.PaymentID, 2999); err != nil {
		t.Fatalf("CompleteCheckout failed: %v", err)
	}

	var locked int64
	db.Model(&model.Lecture{}).
		Where("course_id = ? AND is_free_preview = ?", course.ID, false).
		Count(&locked)
	if locked != 0 {
		t.Errorf("expected all lectures unlocked, %d still locked", locked)
	}
}

func TestAccessStatusPendingIsNotAccess(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 49.99)

	if _, err := svc.StartCheckout(context.Background(), user.ID, course.ID); err != nil {
		t.Fatalf("StartCheckout failed: %v", err)
	}

	got, purchased, err := svc.AccessStatus(context.Background(), user.ID, course.ID)
	if err != nil {
		t.Fatalf("AccessStatus failed: %v", err)
	}
	if got.ID != course.ID {
		t.Errorf("expected course %d, got %d", course.ID, got.ID)
	}
	if purchased {
		t.Error("a pending purchase must not grant access")
	}

	var row model.Purchase
	db.Where("user_id = ?", user.ID).First(&row)
	if err := svc.CompleteCheckout(context.Background(), row.PaymentID, 4999); err != nil {
		t.Fatalf("CompleteCheckout failed: %v", err)
	}

	_, purchased, err = svc.AccessStatus(context.Background(), user.ID, course.ID)
	if err != nil {
		t.Fatalf("AccessStatus failed: %v", err)
	}
	if !purchased {
		t.Error("expected access after completion")
	}
}

func TestAccessStatusUnknownCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})
	user := createUser(t, db, "buyer@test.dev")

	_, _, err := svc.AccessStatus(context.Background(), user.ID, 12345)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestExpireStalePending(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 49.99)

	stale := model.Purchase{
		UserID:    user.ID,
		CourseID:  course.ID,
		Amount:    49.99,
		Currency:  "usd",
		Status:    model.PurchaseStatusPending,
		PaymentID: "cs_stale",
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("failed to create stale row: %v", err)
	}
	db.Model(&stale).Update("created_at", time.Now().Add(-48*time.Hour))

	fresh := model.Purchase{
		UserID:    user.ID,
		CourseID:  course.ID,
		Amount:    49.99,
		Currency:  "usd",
		Status:    model.PurchaseStatusPending,
		PaymentID: "cs_fresh",
	}
	if err := db.Create(&fresh).Error; err != nil {
		t.Fatalf("failed to create fresh row: %v", err)
	}

	expired, err := svc.ExpireStalePending(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("ExpireStalePending failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired row, got %d", expired)
	}

	var swept model.Purchase
	db.Where("payment_id = ?", "cs_stale").First(&swept)
	if swept.Status != model.PurchaseStatusFailed {
		t.Errorf("expected stale row failed, got %s", swept.Status)
	}

	var untouched model.Purchase
	db.Where("payment_id = ?", "cs_fresh").First(&untouched)
	if untouched.Status != model.PurchaseStatusPending {
		t.Errorf("expected fresh row still pending, got %s", untouched.Status)
	}

	// A late verified webhook still completes a swept row.
	if err := svc.CompleteCheckout(context.Background(), "cs_stale", 4999); err != nil {
		t.Fatalf("late CompleteCheckout failed: %v", err)
	}
	db.Where("payment_id = ?", "cs_stale").First(&swept)
	if swept.Status != model.PurchaseStatusCompleted {
		t.Errorf("expected swept row completed after late webhook, got %s", swept.Status)
	}
}

func TestHealEnrollments(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "buyer@test.dev")
	course := createCourse(t, db, 49.99)

	// A completed ledger row with no enrollment, as left behind by a crash
	// between the ledger write and the grant.
	now := time.Now()
	orphan := model.Purchase{
		UserID:      user.ID,
		CourseID:    course.ID,
		Amount:      49.99,
		Currency:    "usd",
		Status:      model.PurchaseStatusCompleted,
		PaymentID:   "cs_orphan",
		CompletedAt: &now,
	}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("failed to create orphan row: %v", err)
	}

	healed, err := svc.HealEnrollments(context.Background())
	if err != nil {
		t.Fatalf("HealEnrollments failed: %v", err)
	}
	if healed != 1 {
		t.Fatalf("expected 1 healed enrollment, got %d", healed)
	}

	var enrollments int64
	db.Model(&model.UserCourse{}).Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("expected enrollment row after heal, found %d", enrollments)
	}

	// Second sweep is a no-op.
	healed, err = svc.HealEnrollments(context.Background())
	if err != nil {
		t.Fatalf("second HealEnrollments failed: %v", err)
	}
	if healed != 0 {
		t.Errorf("expected no rows to heal on second sweep, got %d", healed)
	}
}

func TestManualEnrollIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeProvider{})

	user := createUser(t, db, "supported@test.dev")
	course := createCourse(t, db, 49.99)

	for i := 0; i < 2; i++ {
		if err := svc.ManualEnroll(context.Background(), user.ID, course.ID); err != nil {
			t.Fatalf("ManualEnroll attempt %d failed: %v", i+1, err)
		}
	}

	var enrollments int64
	db.Model(&model.UserCourse{}).Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("expected exactly one enrollment row, found %d", enrollments)
	}

	if err := svc.ManualEnroll(context.Background(), user.ID, 9876); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("expected ErrCourseNotFound for unknown course, got %v", err)
	}
	if err := svc.ManualEnroll(context.Background(), 9876, course.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for unknown user, got %v", err)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		price float64
		want  int64
	}{
		{0, 0},
		{49.99, 4999},
		{10, 1000},
		{0.1, 10},
		{19.995, 2000},
	}

	for _, c := range cases {
		if got := MinorUnits(c.price); got != c.want {
			t.Errorf("MinorUnits(%v) = %d, want %d", c.price, got, c.want)
		}
	}
}
