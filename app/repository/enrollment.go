package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
)

var (
	ErrEnrollmentNotFound      = errors.New("enrollment not found")
	ErrEnrollmentAlreadyExists = errors.New("enrollment already exists")
)

const enrollmentColumns = `
	id, user_id, item_type, item_id, item_name,
	amount_cents, quantity, currency,
	payment_session_id, status, created_at, completed_at`

type EnrollmentRepository struct {
	db DBTX
}

func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, user_id, item_type, item_id, item_name,
			amount_cents, quantity, currency,
			payment_session_id, status, created_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.UserID,
		enrollment.ItemType,
		enrollment.ItemID,
		enrollment.ItemName,
		enrollment.AmountCents,
		enrollment.Quantity,
		enrollment.Currency,
		enrollment.PaymentSessionID,
		enrollment.Status,
		enrollment.CreatedAt,
		nullableTimeValue(enrollment.CompletedAt),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrEnrollmentAlreadyExists
		}
		return err
	}

	return nil
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*entity.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + `
		FROM enrollments
		WHERE id = ?
	`

	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(r.db.QueryRowContext(ctx, query, id), enrollment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func (r *EnrollmentRepository) FindBySessionID(ctx context.Context, sessionID string) ([]*entity.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + `
		FROM enrollments
		WHERE payment_session_id = ?
		ORDER BY created_at ASC, id ASC
	`

	return r.queryEnrollments(ctx, query, sessionID)
}

func (r *EnrollmentRepository) ListByUserID(ctx context.Context, userID string) ([]*entity.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + `
		FROM enrollments
		WHERE user_id = ?
		ORDER BY created_at DESC, id ASC
	`

	return r.queryEnrollments(ctx, query, userID)
}

// CompareAndSetStatus transitions one record only if its status still equals
// the expected source state. Returns false when the record was concurrently
// moved or does not exist; callers decide between no-op and conflict.
func (r *EnrollmentRepository) CompareAndSetStatus(ctx context.Context, id string, expectedStatus, newStatus int32, completedAt *time.Time) (bool, error) {
	query := `
		UPDATE enrollments
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, newStatus, nullableTimeValue(completedAt), id, expectedStatus)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// TransitionBySession applies one conditional status transition to every
// record of a session in a single statement, so all line items of a checkout
// move as one logical unit.
func (r *EnrollmentRepository) TransitionBySession(ctx context.Context, sessionID string, expectedStatus, newStatus int32, completedAt *time.Time) (int64, error) {
	query := `
		UPDATE enrollments
		SET status = ?, completed_at = ?
		WHERE payment_session_id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, newStatus, nullableTimeValue(completedAt), sessionID, expectedStatus)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *EnrollmentRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + `
		FROM enrollments
		WHERE status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.queryEnrollments(ctx, query, entity.StatusPending, cutoff, limit)
}

// ListStalePendingSessions returns distinct session ids that still have
// pending records older than the given moment, for provider-side polling.
func (r *EnrollmentRepository) ListStalePendingSessions(ctx context.Context, before time.Time, limit int32) ([]string, error) {
	query := `
		SELECT DISTINCT payment_session_id
		FROM enrollments
		WHERE status = ? AND created_at <= ?
		ORDER BY payment_session_id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.StatusPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]string, 0)
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		sessions = append(sessions, sessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *EnrollmentRepository) queryEnrollments(ctx context.Context, query string, args ...interface{}) ([]*entity.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := make([]*entity.Enrollment, 0)
	for rows.Next() {
		item := &entity.Enrollment{}
		if err := scanEnrollment(rows, item); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return enrollments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrollment(scan rowScanner, enrollment *entity.Enrollment) error {
	var completedAt sql.NullTime

	err := scan.Scan(
		&enrollment.ID,
		&enrollment.UserID,
		&enrollment.ItemType,
		&enrollment.ItemID,
		&enrollment.ItemName,
		&enrollment.AmountCents,
		&enrollment.Quantity,
		&enrollment.Currency,
		&enrollment.PaymentSessionID,
		&enrollment.Status,
		&enrollment.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return err
	}

	enrollment.CompletedAt = timePtrFromNull(completedAt)
	return nil
}
