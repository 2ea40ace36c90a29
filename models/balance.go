package models

import (
	"time"
)

// Balance holds a user's current credit balance. Version is the optimistic
// lock counter: every successful mutation bumps it, and writers only commit
// through a conditional update on the version they read.
type Balance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Credits   int       `json:"credits" gorm:"not null;default:0"`
	Version   int       `json:"version" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditTransaction is one row of the append-only credit ledger. Rows are
// only ever inserted, never updated or deleted; for every user the sum of
// Credits deltas equals the current balance.
type CreditTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `json:"user_id" gorm:"index;not null"`
	User         User      `json:"-" gorm:"foreignKey:UserID"`
	Type         string    `json:"type" gorm:"index;not null"`
	Credits      int       `json:"credits" gorm:"not null"`
	BalanceAfter int       `json:"balance_after" gorm:"not null"`
	OriginType   string    `json:"origin_type"`
	OriginID     *uint     `json:"origin_id"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// TransactionType constants
const (
	TransactionTypeEarn        = "earn"
	TransactionTypeConsume     = "consume"
	TransactionTypeRefund      = "refund"
	TransactionTypeAdminAdjust = "admin_adjust"
)

// OriginType constants for CreditTransaction.OriginType
const (
	OriginTypeVoucher  = "voucher"
	OriginTypePurchase = "purchase"
	OriginTypeAdmin    = "admin"
	OriginTypeSystem   = "system"
	OriginTypeUsage    = "usage"
)
