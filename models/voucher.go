package models

import (
	"time"
)

// RedeemVoucher is a single-use code exchangeable for a fixed credit grant.
// Status moves one way only: active codes become used, expired or disabled,
// and used is terminal. Disabling an already-expired code is allowed for
// bookkeeping.
type RedeemVoucher struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `json:"code" gorm:"uniqueIndex;size:32;not null"`
	Credits   int        `json:"credits" gorm:"not null"`
	Status    string     `json:"status" gorm:"index;not null;default:'active'"`
	UsedBy    *uint      `json:"used_by"`
	UsedAt    *time.Time `json:"used_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	BatchID   string     `json:"batch_id" gorm:"index;size:50"`
	CreatedAt time.Time  `json:"created_at"`
}

// VoucherStatus constants
const (
	VoucherStatusActive   = "active"
	VoucherStatusUsed     = "used"
	VoucherStatusExpired  = "expired"
	VoucherStatusDisabled = "disabled"
)
