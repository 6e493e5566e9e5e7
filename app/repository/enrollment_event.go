package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
)

type EnrollmentEventRepository struct {
	db DBTX
}

func NewEnrollmentEventRepository(db DBTX) *EnrollmentEventRepository {
	return &EnrollmentEventRepository{db: db}
}

func (r *EnrollmentEventRepository) Create(ctx context.Context, event *entity.EnrollmentEvent) error {
	query := `
		INSERT INTO enrollment_events (
			enrollment_id, event_type, old_status, new_status, provider_event_id, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.EnrollmentID,
		event.EventType,
		nullableInt32Value(event.OldStatus),
		event.NewStatus,
		nullableStringValue(event.ProviderEventID),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}
