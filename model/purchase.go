package model

import (
	"time"

	"gorm.io/datatypes"
)

// Purchase lifecycle states. A row starts pending, transitions to completed
// exactly once (by the payment webhook), and is never deleted. Pending rows
// older than the expiry window are swept to failed by a cron job.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

// Purchase is the ledger entry for one checkout attempt. It links a user to
// a course with the amount snapshotted at checkout time and the payment
// provider's session identifier as the correlation/idempotency key.
type Purchase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index:idx_purchases_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;index:idx_purchases_user_course" json:"course_id"`
	// Amount in base currency units. Snapshotted from the course price when
	// the checkout session is created; overwritten with the provider's
	// reported total on completion, which is authoritative.
	Amount   float64 `gorm:"not null" json:"amount"`
	Currency string  `gorm:"type:varchar(10);default:'usd'" json:"currency"`
	Status   string  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	// PaymentID is the provider checkout session id. At most one ledger row
	// exists per session, enforced by the unique index.
	PaymentID   string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"payment_id"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName specifies the table name for Purchase
func (Purchase) TableName() string {
	return "purchases"
}

// Gateway event processing states
const (
	GatewayEventStatusProcessed = "processed"
	GatewayEventStatusIgnored   = "ignored"
	GatewayEventStatusFailed    = "failed"
)

// PaymentGatewayEvent records every verified webhook delivery from the
// payment provider, with the raw payload kept for audit and replay debugging.
// Multiple rows per purchase are expected since the provider may redeliver.
type PaymentGatewayEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Provider   string         `gorm:"type:varchar(20);not null;default:'stripe'" json:"provider"`
	EventID    string         `gorm:"type:varchar(191);index" json:"event_id"`
	EventType  string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	SessionID  string         `gorm:"type:varchar(191);index" json:"session_id"`
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Status     string         `gorm:"type:varchar(20);not null" json:"status"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	ReceivedAt time.Time      `gorm:"autoCreateTime" json:"received_at"`
}

// TableName specifies the table name for PaymentGatewayEvent
func (PaymentGatewayEvent) TableName() string {
	return "payment_gateway_events"
}
