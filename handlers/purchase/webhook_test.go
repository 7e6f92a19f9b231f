package purchase

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/learnhub-api/database"
	"github.com/sahilchouksey/learnhub-api/model"
	"github.com/sahilchouksey/learnhub-api/services/payment"
	purchasesvc "github.com/sahilchouksey/learnhub-api/services/purchase"
	stripe "github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test_secret"

func setupWebhookTest(t *testing.T) (*fiber.App, *gorm.DB) {
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

	provider := payment.NewStripeProvider("sk_test_unused", testWebhookSecret)
	service := purchasesvc.NewService(db, provider, nil, "", "")
	handler := NewWebhookHandler(db, provider, service)

	app := fiber.New()
	app.Post("/api/v1/payments/webhook", handler.HandleProviderEvent)

	return app, db
}

// signPayload produces a valid Stripe-Signature header for the payload:
// t=<unix>,v1=<hex hmac_sha256(secret, "<unix>.<payload>")>
func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(sessionID string, amountTotal int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_test_1","object":"event","api_version":%q,"type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","amount_total":%d}}}`,
		stripe.APIVersion, sessionID, amountTotal))
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func seedPendingPurchase(t *testing.T, db *gorm.DB, sessionID string) *model.Purchase {
	t.Helper()

	user := model.User{Email: fmt.Sprintf("buyer-%s@test.dev", sessionID), PasswordHash: "x", Name: "Buyer", Role: model.RoleStudent}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	course := model.Course{InstructorID: user.ID, Title: "Course", Price: 49.99, Published: true}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("failed to create course: %v", err)
	}

	row := model.Purchase{
		UserID:    user.ID,
		CourseID:  course.ID,
		Amount:    49.99,
		Currency:  "usd",
		Status:    model.PurchaseStatusPending,
		PaymentID: sessionID,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to create purchase: %v", err)
	}
	return &row
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	app, db := setupWebhookTest(t)
	seedPendingPurchase(t, db, "cs_test_sig")

	payload := checkoutCompletedPayload("cs_test_sig", 4999)

	resp := postWebhook(t, app, payload, "t=123,v1=deadbeef")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a forged signature, got %d", resp.StatusCode)
	}

	// Nothing may change on an unverified delivery.
	var row model.Purchase
	db.Where("payment_id = ?", "cs_test_sig").First(&row)
	if row.Status != model.PurchaseStatusPending {
		t.Errorf("unverified payload mutated the ledger: status %s", row.Status)
	}

	var events int64
	db.Model(&model.PaymentGatewayEvent{}).Count(&events)
	if events != 0 {
		t.Errorf("unverified payload must not be recorded, found %d events", events)
	}
}

func TestWebhookMissingSignatureHeader(t *testing.T) {
	app, db := setupWebhookTest(t)
	seedPendingPurchase(t, db, "cs_test_nosig")

	resp := postWebhook(t, app, checkoutCompletedPayload("cs_test_nosig", 4999), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without a signature header, got %d", resp.StatusCode)
	}
}

func TestWebhookCompletesPurchase(t *testing.T) {
	app, db := setupWebhookTest(t)
	row := seedPendingPurchase(t, db, "cs_test_ok")

	payload := checkoutCompletedPayload("cs_test_ok", 4499)
	resp := postWebhook(t, app, payload, signPayload(testWebhookSecret, payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var completed model.Purchase
	db.First(&completed, row.ID)
	if completed.Status != model.PurchaseStatusCompleted {
		t.Errorf("expected status completed, got %s", completed.Status)
	}
	if completed.Amount != 44.99 {
		t.Errorf("expected provider-reported amount 44.99, got %v", completed.Amount)
	}

	var enrollments int64
	db.Model(&model.UserCourse{}).Where("user_id = ? AND course_id = ?", row.UserID, row.CourseID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("expected one enrollment row, found %d", enrollments)
	}

	var event model.PaymentGatewayEvent
	if err := db.Where("session_id = ?", "cs_test_ok").First(&event).Error; err != nil {
		t.Fatalf("expected a gateway event record: %v", err)
	}
	if event.Status != model.GatewayEventStatusProcessed {
		t.Errorf("expected event status processed, got %s", event.Status)
	}
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	app, db := setupWebhookTest(t)
	row := seedPendingPurchase(t, db, "cs_test_dup")

	payload := checkoutCompletedPayload("cs_test_dup", 4999)

	for i := 0; i < 2; i++ {
		resp := postWebhook(t, app, payload, signPayload(testWebhookSecret, payload))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}

	var completed model.Purchase
	db.First(&completed, row.ID)
	if completed.Status != model.PurchaseStatusCompleted {
		t.Errorf("expected status completed, got %s", completed.Status)
	}

	var enrollments int64
	db.Model(&model.UserCourse{}).Where("user_id = ? AND course_id = ?", row.UserID, row.CourseID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("duplicate delivery must not add enrollments, found %d", enrollments)
	}

	var ledgerRows int64
	db.Model(&model.Purchase{}).Where("payment_id = ?", "cs_test_dup").Count(&ledgerRows)
	if ledgerRows != 1 {
		t.Errorf("duplicate delivery must not add ledger rows, found %d", ledgerRows)
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	app, db := setupWebhookTest(t)
	seedPendingPurchase(t, db, "cs_test_other")

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_test_2","object":"event","api_version":%q,"type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent"}}}`,
		stripe.APIVersion))

	resp := postWebhook(t, app, payload, signPayload(testWebhookSecret, payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for an ignored event type, got %d", resp.StatusCode)
	}

	var row model.Purchase
	db.Where("payment_id = ?", "cs_test_other").First(&row)
	if row.Status != model.PurchaseStatusPending {
		t.Errorf("ignored event mutated the ledger: status %s", row.Status)
	}

	var event model.PaymentGatewayEvent
	if err := db.Where("event_id = ?", "evt_test_2").First(&event).Error; err != nil {
		t.Fatalf("expected an audit record for the ignored event: %v", err)
	}
	if event.Status != model.GatewayEventStatusIgnored {
		t.Errorf("expected event status ignored, got %s", event.Status)
	}
}

func TestWebhookUnknownSession(t *testing.T) {
	app, db := setupWebhookTest(t)

	payload := checkoutCompletedPayload("cs_never_created", 4999)
	resp := postWebhook(t, app, payload, signPayload(testWebhookSecret, payload))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an uncorrelated session, got %d", resp.StatusCode)
	}

	var event model.PaymentGatewayEvent
	if err := db.Where("session_id = ?", "cs_never_created").First(&event).Error; err != nil {
		t.Fatalf("expected an audit record for the anomaly: %v", err)
	}
	if event.Status != model.GatewayEventStatusFailed {
		t.Errorf("expected event status failed, got %s", event.Status)
	}
}
