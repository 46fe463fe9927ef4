package model

import "encoding/json"

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
)

type Payer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
}

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Amount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type Capture struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CreateTime string `json:"create_time"`
	Final      bool   `json:"final_capture"`
	Amount     Amount `json:"amount"`
}

type Payments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	ReferenceID string   `json:"reference_id"`
	CustomID    string   `json:"custom_id"` // owning user id, set at order creation
	Amount      Amount   `json:"amount"`
	Payments    Payments `json:"payments"`
}

// PaypalOrder is the v2 checkout order resource (create, capture and get).
type PaypalOrder struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Payer         Payer          `json:"payer"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Links         []PaypalLink   `json:"links"`
}

// CustomID returns the custom field of the first purchase unit.
func (o *PaypalOrder) CustomID() string {
	for _, pu := range o.PurchaseUnits {
		if pu.CustomID != "" {
			return pu.CustomID
		}
	}
	return ""
}

// FirstCapture returns the first capture found on the order, if any.
func (o *PaypalOrder) FirstCapture() *Capture {
	for _, pu := range o.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			c := pu.Payments.Captures[0]
			return &c
		}
	}
	return nil
}

type RelatedIDs struct {
	OrderID   string `json:"order_id"`
	CaptureID string `json:"capture_id"`
}

type SupplementaryData struct {
	RelatedIDs RelatedIDs `json:"related_ids"`
}

// PaypalResource covers the fields used from capture and refund webhook resources.
type PaypalResource struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	CreateTime        string            `json:"create_time"`
	Amount            Amount            `json:"amount"`
	CustomID          string            `json:"custom_id"`
	SupplementaryData SupplementaryData `json:"supplementary_data"`
	Links             []PaypalLink      `json:"links"`
}

type PayPalWebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   string          `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type PaypalRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}
