package entity

import "time"

type EnrollmentEvent struct {
	ID uint64

	EnrollmentID string

	EventType string

	OldStatus *int32
	NewStatus int32

	ProviderEventID *string

	CreatedAt time.Time
}
