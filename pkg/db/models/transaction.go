package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one append-only ledger line. Negative amounts are debits
// (prediction charges), positive amounts are credits (top-ups). The sum of an
// account's transactions reconciles against its balance.
type Transaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID   uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Description string          `gorm:"column:description;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
