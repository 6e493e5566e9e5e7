package entity

import "time"

const (
	StatusPending   int32 = 1
	StatusCompleted int32 = 2
	StatusFailed    int32 = 3
)

// Enrollment is one purchased line item's payment lifecycle. Rows are never
// deleted; terminal rows stay as the audit trail for financial reconciliation.
type Enrollment struct {
	ID string

	UserID string

	ItemType string
	ItemID   string
	ItemName string

	// AmountCents is the unit price shown to the buyer at checkout time.
	// It is captured once and never recomputed from provider data.
	AmountCents int64
	Quantity    int32
	Currency    string

	PaymentSessionID string

	Status int32

	CreatedAt   time.Time
	CompletedAt *time.Time
}

func TerminalStatus(status int32) bool {
	return status == StatusCompleted || status == StatusFailed
}

func StatusName(status int32) string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
