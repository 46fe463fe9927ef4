package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       uint            `gorm:"primaryKey"`
	Name     string          `gorm:"size:128;not null"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity int             `gorm:"not null;default:0"` // stock, never below zero
	Category string          `gorm:"size:64;index"`
	Image    string          `gorm:"size:255"`
	Hidden   bool            `gorm:"not null;default:false"` // hidden from listings, still referenced by orders
}

type CartItem struct {
	UserID    string `gorm:"primaryKey;size:64"`
	ProductID uint   `gorm:"primaryKey"`
	Quantity  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Order is the header allocated at checkout commit. Its auto-increment ID is
// the order id shared by every OrderLine of the purchase.
type Order struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        string          `gorm:"size:64;index;not null"`
	TransactionID string          `gorm:"size:128;uniqueIndex;not null"` // settling capture id
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt     time.Time
}

type OrderLine struct {
	ID            uint            `gorm:"primaryKey"`
	OrderID       uint            `gorm:"index;not null"`
	UserID        string          `gorm:"size:64;index;not null"`
	ProductID     uint            `gorm:"index;not null"`
	ProductName   string          `gorm:"size:128"`
	Quantity      int             `gorm:"not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"` // quantity x unit price at commit
	TransactionID string          `gorm:"size:128;index;not null"`
	OrderedAt     time.Time       `gorm:"not null"`
}

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "COMPLETED" // finalized, order linked
	TransactionFailed    TransactionStatus = "FAILED"    // captured, finalize rejected; needs manual reconciliation
)

// Transaction is keyed by the provider capture id. At most one row exists per
// capture, which makes the insert the commit point of finalization.
type Transaction struct {
	ID         string            `gorm:"primaryKey;size:128"` // capture id
	Provider   string            `gorm:"size:32;not null"`    // PAYPAL, NETS, BRAINTREE
	OrderID    *uint             `gorm:"index"`
	UserID     string            `gorm:"size:64;index;not null"`
	PayerID    string            `gorm:"size:64"`
	PayerEmail string            `gorm:"size:255"`
	Amount     decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	Currency   string            `gorm:"size:8;not null"`
	Status     TransactionStatus `gorm:"size:32;index;not null"`
	FailReason string            `gorm:"size:255"`
	CapturedAt time.Time
	Refunded   bool    `gorm:"not null;default:false"`
	RefundID   *string `gorm:"size:128"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundApproved RefundStatus = "APPROVED"
	RefundRefunded RefundStatus = "REFUNDED"
)

// Rank orders refund statuses; a refund only ever moves to a higher rank.
func (s RefundStatus) Rank() int {
	switch s {
	case RefundPending:
		return 0
	case RefundApproved:
		return 1
	case RefundRefunded:
		return 2
	}
	return -1
}

type Refund struct {
	ID               string       `gorm:"primaryKey;size:36"`
	TransactionID    string       `gorm:"size:128;uniqueIndex;not null"`
	UserID           string       `gorm:"size:64;index;not null"`
	Reason           string       `gorm:"size:512"`
	Image            *string      `gorm:"size:255"`
	Status           RefundStatus `gorm:"size:16;index;not null"`
	ProviderRefundID *string      `gorm:"size:128"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ResourceID  string `gorm:"size:128;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// QRPayment pins what a NETS QR code charges and who it was issued to, so the
// poll loop settles against the charged amount rather than the live cart.
type QRPayment struct {
	TxnRetrievalRef string          `gorm:"primaryKey;size:128"`
	UserID          string          `gorm:"size:64;index;not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency        string          `gorm:"size:8;not null"`
	CreatedAt       time.Time
}
