package models

import (
	"time"
)

// Purchase records one external in-app purchase. The receipt token is the
// idempotency key: its uniqueness constraint guarantees a token maps to at
// most one completed purchase no matter how often verification is retried.
type Purchase struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	OrderID      string     `json:"order_id" gorm:"uniqueIndex;size:100;not null"`
	Platform     string     `json:"platform" gorm:"index;size:50;not null"`
	UserID       uint       `json:"user_id" gorm:"index;not null"`
	User         User       `json:"-" gorm:"foreignKey:UserID"`
	ProductID    string     `json:"product_id" gorm:"size:100;not null"`
	Credits      int        `json:"credits" gorm:"not null"`
	AmountMicros int64      `json:"amount_micros"`
	Currency     string     `json:"currency" gorm:"size:3"`
	Status       string     `json:"status" gorm:"index;not null;default:'pending'"`
	ReceiptToken string     `json:"-" gorm:"uniqueIndex;size:512;not null"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// PurchaseStatus constants
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
	PurchaseStatusConsumed  = "consumed"
)

// Platform constants
const (
	PlatformGooglePlay = "google_play"
)
