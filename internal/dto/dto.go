package dto

import "github.com/shopspring/decimal"

type PaymentRequest struct {
	Amount   *decimal.Decimal `json:"amount"` // major units
	Currency string           `json:"currency"`
	BoxIndex *int             `json:"boxIndex"`
	UserID   string           `json:"userId"`
}

type PaymentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

type VerifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature"`
	UserID    string `json:"userId"`
	BoxIndex  *int   `json:"boxIndex"`
}

type VerifyPaymentResponse struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
	Details  string `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SubmitAdRequest struct {
	ID          string `json:"id"`
	BoxIndex    *int   `json:"boxIndex"`
	Heading     string `json:"heading"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

type UploadResponse struct {
	URL string `json:"url"`
}

type PurchasesResponse struct {
	Boxes []int `json:"boxes"`
}

type ClientConfigResponse struct {
	KeyID     string `json:"keyId"`
	Currency  string `json:"currency"`
	BoxCount  int    `json:"boxCount"`
	UnitPrice int64  `json:"unitPrice"`
}
