package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/provider"
)

// RunExpirePendingBatch fails pending enrollments whose checkout session can
// no longer complete. The compare-and-set keeps the job safe against a
// concurrent webhook delivery completing the same record.
func (s *EnrollmentService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.enrollmentsCfg.PendingTimeout)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	items, err := s.enrollmentRepo.ListExpiredPending(storeCtx, cutoff, s.batchSize())
	if err != nil {
		return storeErr(err)
	}

	var firstErr error
	for _, enrollment := range items {
		if enrollment == nil {
			continue
		}

		ok, err := s.enrollmentRepo.CompareAndSetStatus(ctx, enrollment.ID, entity.StatusPending, entity.StatusFailed, nil)
		if err != nil {
			firstErr = keepFirstErr(firstErr, storeErr(err))
			continue
		}
		if !ok {
			// Lost to a concurrent transition; that outcome stands.
			continue
		}

		oldStatus := entity.StatusPending
		_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
			EnrollmentID: enrollment.ID,
			EventType:    "enrollment_expired",
			OldStatus:    &oldStatus,
			NewStatus:    entity.StatusFailed,
			CreatedAt:    now,
		})
	}

	return firstErr
}

// RunReconcileBatch polls the provider for sessions that stayed pending
// longer than expected, covering webhook deliveries that never arrived. The
// poll result is routed through the same session transition the webhook path
// uses.
func (s *EnrollmentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.enrollmentsCfg.ReconcileStaleAfter)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	sessions, err := s.enrollmentRepo.ListStalePendingSessions(storeCtx, before, s.batchSize())
	if err != nil {
		return storeErr(err)
	}

	providerClient, err := s.providerReg.Get(provider.CodeStripe)
	if err != nil {
		return ErrProviderUnsupported
	}

	var firstErr error
	for _, sessionID := range sessions {
		kind, err := providerClient.GetSessionStatus(ctx, sessionID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, gatewayErr(err))
			continue
		}
		if kind == provider.EventKindUnknown {
			continue
		}

		outcome, _, err := s.applySessionTransition(ctx, sessionID, kind, nil, "provider_reconcile")
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if outcome == OutcomeInconsistentState {
			firstErr = keepFirstErr(firstErr, ErrInconsistentState)
		}
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
