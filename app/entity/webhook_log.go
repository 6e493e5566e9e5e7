package entity

import "time"

const (
	WebhookProcessed      int32 = 10
	WebhookNoOp           int32 = 11
	WebhookIgnored        int32 = 12
	WebhookUnknownSession int32 = 13
	WebhookFlagged        int32 = 14
	WebhookRejected       int32 = 20
)

// WebhookLog records every notification delivery attempt, including rejected
// ones, so that no structurally valid event can be lost silently.
type WebhookLog struct {
	ID uint64

	Provider  string
	EventID   *string
	EventType string
	SessionID *string

	Signature   string
	PayloadJSON string

	Status int32
	Error  *string

	CreatedAt time.Time
}
