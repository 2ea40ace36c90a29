package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an app installation identified by its device id.
// Registration is anonymous; an email can be bound later for account
// recovery. The running totals are denormalized for reporting only, the
// transaction ledger stays the source of truth.
type User struct {
	gorm.Model
	InstallationID        string    `gorm:"uniqueIndex;not null" json:"installation_id"`
	Email                 *string   `gorm:"uniqueIndex;default:null" json:"email,omitempty"`
	EmailVerified         bool      `gorm:"default:false" json:"email_verified"`
	LastActiveAt          time.Time `json:"last_active_at"`
	TotalCreditsPurchased int       `gorm:"not null;default:0" json:"total_credits_purchased"`
	TotalCreditsConsumed  int       `gorm:"not null;default:0" json:"total_credits_consumed"`

	Balance Balance `json:"balance,omitempty" gorm:"foreignKey:UserID"`
}

// Admin represents an administrator in the system
type Admin struct {
	gorm.Model
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `json:"-"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	LastLogin time.Time `json:"last_login"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
}
