package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type AddToCartRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type UpdateCartRequest struct {
	// product id -> quantity
	Quantities map[uint]int `json:"quantities"`
}

type CartLine struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Available int             `json:"available"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	Lines []CartLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type CreateOrderResponse struct {
	OrderID    string          `json:"order_id"`
	ApproveURL string          `json:"approve_url"`
	Amount     decimal.Decimal `json:"amount"`
}

type CaptureResponse struct {
	OrderID   string `json:"order_id"`
	CaptureID string `json:"capture_id"`
	Status    string `json:"status"`
}

type CardCheckoutRequest struct {
	Nonce string `json:"nonce"`
}

type FinalizeResult struct {
	CaptureID string `json:"capture_id"`
	OrderID   uint   `json:"order_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type PaymentStatus struct {
	CaptureID string `json:"capture_id"`
	Finalized bool   `json:"finalized"`
	Failed    bool   `json:"failed,omitempty"`
	OrderID   *uint  `json:"order_id,omitempty"`
	Refunded  bool   `json:"refunded,omitempty"`
}

// FinalizeEvent is delivered once to subscribers of a capture id.
type FinalizeEvent struct {
	CaptureID string `json:"capture_id"`
	Status    string `json:"status"` // finalized, failed, timeout
	OrderID   uint   `json:"order_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

const (
	FinalizeStatusFinalized = "finalized"
	FinalizeStatusFailed    = "failed"
	FinalizeStatusTimeout   = "timeout"
)

type QRCodeResponse struct {
	Total           decimal.Decimal `json:"total"`
	QRCode          string          `json:"qr_code"`
	TxnRetrievalRef string          `json:"txn_retrieval_ref"`
	NetworkStatus   int             `json:"network_status"`
	TimerSeconds    int             `json:"timer_seconds"`
}

// QRPollEvent is one message of the NETS polling stream.
type QRPollEvent struct {
	Poll         int    `json:"poll"`
	Status       string `json:"status"` // pending, success, fail
	ResponseCode string `json:"response_code,omitempty"`
	TxnStatus    int    `json:"txn_status"`
	OrderID      uint   `json:"order_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

const (
	QRPollPending = "pending"
	QRPollSuccess = "success"
	QRPollFail    = "fail"
)

type RefundRequest struct {
	TransactionID string  `json:"transaction_id"`
	Reason        string  `json:"reason"`
	Image         *string `json:"image"`
}

type OrderSummary struct {
	OrderID       uint            `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	OrderedAt     time.Time       `json:"ordered_at"`
	Total         decimal.Decimal `json:"total"`
}

type InvoiceLine struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Invoice struct {
	OrderID       uint            `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	OrderedAt     time.Time       `json:"ordered_at"`
	Lines         []InvoiceLine   `json:"lines"`
	Total         decimal.Decimal `json:"total"`
}
