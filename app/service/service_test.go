package service

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/provider"
	"github.com/vibast-solutions/ms-go-enrollments/config"
)

// serviceEnrollmentRepo is a mutex-guarded in-memory store with the same
// conditional-update semantics as the MySQL repository. Read and mutation
// counters let tests prove the store was never touched on rejected input.
type serviceEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]*entity.Enrollment
	reads       int
	mutations   int
	createErr   error
	findErr     error
}

func newServiceEnrollmentRepo() *serviceEnrollmentRepo {
	return &serviceEnrollmentRepo{enrollments: map[string]*entity.Enrollment{}}
}

func (r *serviceEnrollmentRepo) Create(_ context.Context, enrollment *entity.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.mutations++
	copyItem := *enrollment
	r.enrollments[enrollment.ID] = &copyItem
	return nil
}

func (r *serviceEnrollmentRepo) FindByID(_ context.Context, id string) (*entity.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	item, ok := r.enrollments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *serviceEnrollmentRepo) FindBySessionID(_ context.Context, sessionID string) ([]*entity.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.findErr != nil {
		return nil, r.findErr
	}
	items := make([]*entity.Enrollment, 0)
	for _, item := range r.enrollments {
		if item.PaymentSessionID == sessionID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *serviceEnrollmentRepo) ListByUserID(_ context.Context, userID string) ([]*entity.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	items := make([]*entity.Enrollment, 0)
	for _, item := range r.enrollments {
		if item.UserID == userID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *serviceEnrollmentRepo) CompareAndSetStatus(_ context.Context, id string, expectedStatus, newStatus int32, completedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations++
	item, ok := r.enrollments[id]
	if !ok || item.Status != expectedStatus {
		return false, nil
	}
	item.Status = newStatus
	if completedAt != nil {
		t := *completedAt
		item.CompletedAt = &t
	}
	return true, nil
}

func (r *serviceEnrollmentRepo) TransitionBySession(_ context.Context, sessionID string, expectedStatus, newStatus int32, completedAt *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations++
	var applied int64
	for _, item := range r.enrollments {
		if item.PaymentSessionID != sessionID || item.Status != expectedStatus {
			continue
		}
		item.Status = newStatus
		if completedAt != nil {
			t := *completedAt
			item.CompletedAt = &t
		}
		applied++
	}
	return applied, nil
}

func (r *serviceEnrollmentRepo) ListExpiredPending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	items := make([]*entity.Enrollment, 0)
	for _, item := range r.enrollments {
		if item.Status == entity.StatusPending && !item.CreatedAt.After(cutoff) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *serviceEnrollmentRepo) ListStalePendingSessions(_ context.Context, before time.Time, limit int32) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	seen := map[string]bool{}
	sessions := make([]string, 0)
	for _, item := range r.enrollments {
		if item.Status == entity.StatusPending && !item.CreatedAt.After(before) && !seen[item.PaymentSessionID] {
			seen[item.PaymentSessionID] = true
			sessions = append(sessions, item.PaymentSessionID)
		}
	}
	if limit > 0 && int(limit) < len(sessions) {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r *serviceEnrollmentRepo) bySession(sessionID string) []*entity.Enrollment {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Enrollment, 0)
	for _, item := range r.enrollments {
		if item.PaymentSessionID == sessionID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items
}

func (r *serviceEnrollmentRepo) seed(items ...*entity.Enrollment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		copyItem := *item
		r.enrollments[item.ID] = &copyItem
	}
}

type serviceEventRepo struct {
	mu     sync.Mutex
	events []*entity.EnrollmentEvent
}

func (r *serviceEventRepo) Create(_ context.Context, event *entity.EnrollmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *serviceEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type serviceWebhookRepo struct {
	mu   sync.Mutex
	logs []*entity.WebhookLog
}

func (r *serviceWebhookRepo) Create(_ context.Context, log *entity.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *log
	r.logs = append(r.logs, &copyItem)
	return nil
}

func (r *serviceWebhookRepo) last() *entity.WebhookLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return nil
	}
	return r.logs[len(r.logs)-1]
}

type serviceCatalogRepo struct {
	prices map[string]int64
}

func (r *serviceCatalogRepo) PriceCents(_ context.Context, itemType, itemID string) (int64, bool, error) {
	price, ok := r.prices[itemType+"/"+itemID]
	return price, ok, nil
}

// serviceProvider is a canned payment provider. Tests plug in verifyFn to
// control notification parsing and sessionStatus for reconcile lookups.
type serviceProvider struct {
	checkoutOutput *provider.CheckoutOutput
	checkoutErr    error
	lastInput      *provider.CheckoutInput

	verifyFn func(payload []byte, signature string) (*provider.NotificationEvent, error)

	sessionStatus map[string]int32
	statusErr     error
}

func (p *serviceProvider) Code() int32 {
	return provider.CodeStripe
}

func (p *serviceProvider) CreateCheckoutSession(_ context.Context, input *provider.CheckoutInput) (*provider.CheckoutOutput, error) {
	p.lastInput = input
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	if p.checkoutOutput != nil {
		return p.checkoutOutput, nil
	}
	return &provider.CheckoutOutput{
		SessionID:   "cs_test_123",
		CheckoutURL: "https://stripe.example/checkout/cs_test_123",
	}, nil
}

func (p *serviceProvider) VerifyNotification(_ context.Context, payload []byte, signature string) (*provider.NotificationEvent, error) {
	if p.verifyFn != nil {
		return p.verifyFn(payload, signature)
	}
	return nil, provider.ErrInvalidSignature
}

func (p *serviceProvider) GetSessionStatus(_ context.Context, sessionID string) (int32, error) {
	if p.statusErr != nil {
		return provider.EventKindUnknown, p.statusErr
	}
	return p.sessionStatus[sessionID], nil
}

type serviceFixture struct {
	enrollmentRepo *serviceEnrollmentRepo
	eventRepo      *serviceEventRepo
	webhookRepo    *serviceWebhookRepo
	catalogRepo    *serviceCatalogRepo
	providerClient *serviceProvider
	svc            *EnrollmentService
}

func newServiceFixture() *serviceFixture {
	enrollmentRepo := newServiceEnrollmentRepo()
	eventRepo := &serviceEventRepo{}
	webhookRepo := &serviceWebhookRepo{}
	catalogRepo := &serviceCatalogRepo{prices: map[string]int64{}}
	providerClient := &serviceProvider{}

	svc := NewEnrollmentService(
		enrollmentRepo,
		eventRepo,
		webhookRepo,
		catalogRepo,
		provider.NewRegistry(providerClient),
		config.CheckoutConfig{
			SuccessURL: "https://shop.example/checkout/success",
			CancelURL:  "https://shop.example/checkout/cancel",
			Currency:   "USD",
		},
		config.EnrollmentsConfig{
			StoreTimeout:        2 * time.Second,
			PendingTimeout:      24 * time.Hour,
			ReconcileStaleAfter: 15 * time.Minute,
			JobBatchSize:        100,
		},
	)

	return &serviceFixture{
		enrollmentRepo: enrollmentRepo,
		eventRepo:      eventRepo,
		webhookRepo:    webhookRepo,
		catalogRepo:    catalogRepo,
		providerClient: providerClient,
		svc:            svc,
	}
}

func pendingEnrollment(id, sessionID string, createdAt time.Time) *entity.Enrollment {
	return &entity.Enrollment{
		ID:               id,
		UserID:           "user-1",
		ItemType:         "course",
		ItemID:           "course-1",
		ItemName:         "Course",
		AmountCents:      4999,
		Quantity:         1,
		Currency:         "USD",
		PaymentSessionID: sessionID,
		Status:           entity.StatusPending,
		CreatedAt:        createdAt,
	}
}

func completedNotification(sessionID string) func([]byte, string) (*provider.NotificationEvent, error) {
	return notificationFor(sessionID, provider.EventKindCompleted, "checkout.session.completed")
}

func failedNotification(sessionID string) func([]byte, string) (*provider.NotificationEvent, error) {
	return notificationFor(sessionID, provider.EventKindFailed, "checkout.session.async_payment_failed")
}

func notificationFor(sessionID string, kind int32, eventType string) func([]byte, string) (*provider.NotificationEvent, error) {
	return func(_ []byte, signature string) (*provider.NotificationEvent, error) {
		if signature != "valid" {
			return nil, provider.ErrInvalidSignature
		}
		return &provider.NotificationEvent{
			EventID:   "evt_1",
			EventType: eventType,
			Kind:      kind,
			SessionID: sessionID,
		}, nil
	}
}
