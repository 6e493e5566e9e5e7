package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/factory"
	"github.com/vibast-solutions/ms-go-enrollments/app/provider"
	"github.com/vibast-solutions/ms-go-enrollments/config"
)

const (
	defaultBatchSize    = int32(100)
	defaultStoreTimeout = 5 * time.Second
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *entity.Enrollment) error
	FindByID(ctx context.Context, id string) (*entity.Enrollment, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]*entity.Enrollment, error)
	ListByUserID(ctx context.Context, userID string) ([]*entity.Enrollment, error)
	CompareAndSetStatus(ctx context.Context, id string, expectedStatus, newStatus int32, completedAt *time.Time) (bool, error)
	TransitionBySession(ctx context.Context, sessionID string, expectedStatus, newStatus int32, completedAt *time.Time) (int64, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error)
	ListStalePendingSessions(ctx context.Context, before time.Time, limit int32) ([]string, error)
}

type enrollmentEventRepository interface {
	Create(ctx context.Context, event *entity.EnrollmentEvent) error
}

type webhookLogRepository interface {
	Create(ctx context.Context, log *entity.WebhookLog) error
}

type catalogRepository interface {
	PriceCents(ctx context.Context, itemType, itemID string) (int64, bool, error)
}

type EnrollmentService struct {
	enrollmentRepo enrollmentRepository
	eventRepo      enrollmentEventRepository
	webhookRepo    webhookLogRepository
	catalogRepo    catalogRepository
	providerReg    *provider.Registry
	checkoutCfg    config.CheckoutConfig
	enrollmentsCfg config.EnrollmentsConfig
	logger         logrus.FieldLogger
}

func NewEnrollmentService(
	enrollmentRepo enrollmentRepository,
	eventRepo enrollmentEventRepository,
	webhookRepo webhookLogRepository,
	catalogRepo catalogRepository,
	providerReg *provider.Registry,
	checkoutCfg config.CheckoutConfig,
	enrollmentsCfg config.EnrollmentsConfig,
) *EnrollmentService {
	if enrollmentsCfg.StoreTimeout <= 0 {
		enrollmentsCfg.StoreTimeout = defaultStoreTimeout
	}

	return &EnrollmentService{
		enrollmentRepo: enrollmentRepo,
		eventRepo:      eventRepo,
		webhookRepo:    webhookRepo,
		catalogRepo:    catalogRepo,
		providerReg:    providerReg,
		checkoutCfg:    checkoutCfg,
		enrollmentsCfg: enrollmentsCfg,
		logger:         factory.NewModuleLogger("enrollments-service"),
	}
}

func (s *EnrollmentService) GetEnrollment(ctx context.Context, id string) (*entity.Enrollment, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	enrollment, err := s.enrollmentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	return enrollment, nil
}

func (s *EnrollmentService) ListUserEnrollments(ctx context.Context, userID string) ([]*entity.Enrollment, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	items, err := s.enrollmentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// storeContext bounds a unit of store work so a slow database surfaces as a
// retryable failure instead of a hang.
func (s *EnrollmentService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.enrollmentsCfg.StoreTimeout)
}

func (s *EnrollmentService) batchSize() int32 {
	if s.enrollmentsCfg.JobBatchSize > 0 {
		return s.enrollmentsCfg.JobBatchSize
	}
	return defaultBatchSize
}
