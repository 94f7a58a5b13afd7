package model

import "time"

// BoxCount is the number of purchasable slots on the grid.
const BoxCount = 12

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

// ValidBoxIndex reports whether index addresses a box on the grid.
func ValidBoxIndex(index int) bool {
	return index >= 0 && index < BoxCount
}

type Purchase struct {
	OrderID   string         `gorm:"primaryKey;size:64;not null"` // razorpay order id
	UserID    string         `gorm:"size:64;index;not null"`
	BoxIndex  int            `gorm:"index;not null"`
	Status    PurchaseStatus `gorm:"size:16;index;not null"` // pending, completed, failed
	PaymentID string         `gorm:"size:64"`
	// set only while completed; the unique index allows a single owner per box
	ClaimedBox    *int   `gorm:"uniqueIndex"`
	FailureReason string `gorm:"size:255"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Ad struct {
	ID          string    `gorm:"primaryKey;size:36;not null" json:"id"`
	UserID      string    `gorm:"size:64;index;not null" json:"userId"`
	BoxIndex    int       `gorm:"uniqueIndex;not null" json:"boxIndex"`
	Heading     string    `gorm:"size:120;not null" json:"heading"`
	Description string    `gorm:"size:1000" json:"description"`
	ImageURL    string    `gorm:"size:512" json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
