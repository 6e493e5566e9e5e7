package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/provider"
)

// Reconciliation outcomes. Every verified notification ends in exactly one of
// these; nothing structurally valid is dropped silently.
const (
	OutcomeApplied           = "applied"
	OutcomeNoOp              = "no_op"
	OutcomeIgnored           = "ignored"
	OutcomeUnknownSession    = "unknown_session"
	OutcomeInconsistentState = "inconsistent_state"
)

const transitionAttempts = 3

type ReconcileResult struct {
	Outcome   string
	SessionID string
	EventType string
	Applied   int64
}

// HandleProviderNotification verifies a raw provider notification and applies
// it to the enrollment records of its session.
//
// Verification runs against the exact bytes received, before any enrollment
// store access. Applying the same event any number of times, in any order
// relative to its duplicates, yields the same final state: the transition is
// conditional on the current status, keyed by session identifier rather than
// provider event id, since providers redeliver identical business content
// under fresh wrapper ids.
func (s *EnrollmentService) HandleProviderNotification(ctx context.Context, providerName string, payload []byte, signature string) (*ReconcileResult, error) {
	providerCode, err := provider.ParseCode(providerName)
	if err != nil {
		return nil, ErrProviderUnsupported
	}
	providerClient, err := s.providerReg.Get(providerCode)
	if err != nil {
		return nil, ErrProviderUnsupported
	}

	event, err := providerClient.VerifyNotification(ctx, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidSignature):
			s.logger.WithField("provider", providerName).Warn("notification signature verification failed")
			s.logRejectedWebhook(ctx, providerName, payload, signature, "signature verification failed")
			return nil, ErrInvalidSignature
		case errors.Is(err, provider.ErrMalformedPayload):
			s.logRejectedWebhook(ctx, providerName, payload, signature, "payload could not be parsed")
			return nil, ErrMalformedNotification
		default:
			return nil, gatewayErr(err)
		}
	}

	result := &ReconcileResult{
		SessionID: event.SessionID,
		EventType: event.EventType,
	}

	if event.Kind == provider.EventKindUnknown {
		s.logger.WithFields(map[string]interface{}{
			"provider":   providerName,
			"event_type": event.EventType,
			"event_id":   event.EventID,
		}).Info("ignoring unrecognized notification kind")
		result.Outcome = OutcomeIgnored
		s.logWebhook(ctx, providerName, event, payload, signature, entity.WebhookIgnored)
		return result, nil
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	eventID := optionalString(event.EventID)
	outcome, applied, err := s.applySessionTransition(ctx, event.SessionID, event.Kind, eventID, event.EventType)
	if err != nil {
		return nil, err
	}

	result.Outcome = outcome
	result.Applied = applied
	s.logWebhook(ctx, providerName, event, payload, signature, webhookStatusForOutcome(outcome))

	return result, nil
}

// applySessionTransition moves every record of a session from pending to the
// state the event kind demands, as one logical unit.
//
// The update is conditional on the current status, so concurrent duplicate or
// conflicting deliveries cannot both win: the loser observes zero affected
// rows, re-reads, and resolves to a no-op or an inconsistent-state flag.
func (s *EnrollmentService) applySessionTransition(ctx context.Context, sessionID string, kind int32, providerEventID *string, eventType string) (string, int64, error) {
	targetStatus := entity.StatusCompleted
	transitionEvent := "enrollment_completed"
	if kind == provider.EventKindFailed {
		targetStatus = entity.StatusFailed
		transitionEvent = "enrollment_failed"
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		records, err := s.enrollmentRepo.FindBySessionID(ctx, sessionID)
		if err != nil {
			return "", 0, storeErr(err)
		}
		if len(records) == 0 {
			s.logger.WithFields(map[string]interface{}{
				"session_id": sessionID,
				"event_type": eventType,
			}).Warn("notification references unknown session")
			return OutcomeUnknownSession, 0, nil
		}

		pending := make([]*entity.Enrollment, 0, len(records))
		conflicting := 0
		for _, record := range records {
			switch {
			case record.Status == targetStatus:
			case record.Status == entity.StatusPending:
				pending = append(pending, record)
			case entity.TerminalStatus(record.Status):
				conflicting++
			}
		}

		if conflicting > 0 {
			if targetStatus == entity.StatusFailed {
				// A failure signal for an already-completed session carries no
				// new information; the completion stands.
				return OutcomeNoOp, 0, nil
			}
			// A completion signal against failed records is never
			// auto-resolved; a human has to decide which provider signal to
			// trust.
			s.logger.WithFields(map[string]interface{}{
				"session_id":  sessionID,
				"event_type":  eventType,
				"target":      entity.StatusName(targetStatus),
				"conflicting": conflicting,
			}).Error("conflicting terminal state for session, flagged for manual review")
			return OutcomeInconsistentState, 0, nil
		}

		if len(pending) == 0 {
			return OutcomeNoOp, 0, nil
		}

		var completedAt *time.Time
		now := time.Now().UTC()
		if targetStatus == entity.StatusCompleted {
			completedAt = &now
		}

		applied, err := s.enrollmentRepo.TransitionBySession(ctx, sessionID, entity.StatusPending, targetStatus, completedAt)
		if err != nil {
			return "", 0, storeErr(err)
		}
		if applied == 0 {
			// Lost the race against a concurrent delivery; re-read and
			// re-classify.
			continue
		}

		oldStatus := entity.StatusPending
		for _, record := range pending {
			_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
				EnrollmentID:    record.ID,
				EventType:       transitionEvent,
				OldStatus:       &oldStatus,
				NewStatus:       targetStatus,
				ProviderEventID: providerEventID,
				CreatedAt:       now,
			})
		}

		return OutcomeApplied, applied, nil
	}

	return "", 0, storeErr(errors.New("session transition retries exhausted"))
}

func (s *EnrollmentService) logWebhook(ctx context.Context, providerName string, event *provider.NotificationEvent, payload []byte, signature string, status int32) {
	now := time.Now().UTC()
	log := &entity.WebhookLog{
		Provider:    strings.ToLower(strings.TrimSpace(providerName)),
		EventID:     optionalString(event.EventID),
		EventType:   event.EventType,
		SessionID:   optionalString(event.SessionID),
		Signature:   strings.TrimSpace(signature),
		PayloadJSON: string(payload),
		Status:      status,
		CreatedAt:   now,
	}
	if err := s.webhookRepo.Create(ctx, log); err != nil {
		s.logger.WithError(err).Warn("webhook log write failed")
	}
}

func (s *EnrollmentService) logRejectedWebhook(ctx context.Context, providerName string, payload []byte, signature string, reason string) {
	now := time.Now().UTC()
	trimmed := truncate(reason, 1024)
	log := &entity.WebhookLog{
		Provider:    strings.ToLower(strings.TrimSpace(providerName)),
		Signature:   strings.TrimSpace(signature),
		PayloadJSON: string(payload),
		Status:      entity.WebhookRejected,
		Error:       &trimmed,
		CreatedAt:   now,
	}
	if err := s.webhookRepo.Create(ctx, log); err != nil {
		s.logger.WithError(err).Warn("webhook log write failed")
	}
}

func webhookStatusForOutcome(outcome string) int32 {
	switch outcome {
	case OutcomeApplied:
		return entity.WebhookProcessed
	case OutcomeNoOp:
		return entity.WebhookNoOp
	case OutcomeUnknownSession:
		return entity.WebhookUnknownSession
	case OutcomeInconsistentState:
		return entity.WebhookFlagged
	default:
		return entity.WebhookIgnored
	}
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
