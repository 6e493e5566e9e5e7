package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/provider"
	"github.com/vibast-solutions/ms-go-enrollments/app/repository"
	"github.com/vibast-solutions/ms-go-enrollments/app/types"
)

type CheckoutResult struct {
	SessionID   string
	RedirectURL string
}

// CreateCheckoutSession validates the requested line items against the
// catalog, creates the remote checkout session, then persists one pending
// enrollment per line item.
//
// The two steps are not atomic across the two systems. The remote session is
// created first; if local persistence then fails for some items, the session
// is still returned so the buyer can pay, and the gap is logged for
// out-of-band repair. A lost local record must never block or duplicate the
// remote charge, so the remote session is never cancelled from here.
func (s *EnrollmentService) CreateCheckoutSession(ctx context.Context, req *types.CreateCheckoutSessionRequest) (*CheckoutResult, error) {
	if req == nil || req.UserId == "" || len(req.Items) == 0 {
		return nil, ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	lineItems := make([]provider.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		priceCents, found, err := s.catalogRepo.PriceCents(ctx, item.Type, item.Id)
		if err != nil {
			if errors.Is(err, repository.ErrItemTypeNotSupported) {
				return nil, fmt.Errorf("%w: item type %q", ErrInvalidRequest, item.Type)
			}
			return nil, storeErr(err)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s/%s", ErrItemNotFound, item.Type, item.Id)
		}
		if priceCents != item.PriceCents {
			return nil, fmt.Errorf("%w: %s/%s expected %d got %d", ErrPriceMismatch, item.Type, item.Id, priceCents, item.PriceCents)
		}

		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		lineItems = append(lineItems, provider.LineItem{
			ItemType:        item.Type,
			ItemID:          item.Id,
			Name:            item.Name,
			UnitAmountCents: priceCents,
			Quantity:        quantity,
		})
	}

	providerClient, err := s.providerReg.Get(provider.CodeStripe)
	if err != nil {
		return nil, ErrProviderUnsupported
	}

	session, err := providerClient.CreateCheckoutSession(ctx, &provider.CheckoutInput{
		ClientReferenceID: req.UserId,
		Currency:          s.checkoutCfg.Currency,
		LineItems:         lineItems,
		CustomerEmail:     req.UserEmail,
		Metadata:          map[string]string{"user_id": req.UserId},
		SuccessURL:        s.checkoutCfg.SuccessURL,
		CancelURL:         s.checkoutCfg.CancelURL,
	})
	if err != nil {
		return nil, gatewayErr(err)
	}

	s.persistPendingEnrollments(ctx, req, lineItems, session.SessionID)

	return &CheckoutResult{
		SessionID:   session.SessionID,
		RedirectURL: session.CheckoutURL,
	}, nil
}

func (s *EnrollmentService) persistPendingEnrollments(ctx context.Context, req *types.CreateCheckoutSessionRequest, lineItems []provider.LineItem, sessionID string) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	for _, item := range lineItems {
		enrollment := &entity.Enrollment{
			ID:               uuid.NewString(),
			UserID:           req.UserId,
			ItemType:         item.ItemType,
			ItemID:           item.ItemID,
			ItemName:         item.Name,
			AmountCents:      item.UnitAmountCents,
			Quantity:         item.Quantity,
			Currency:         s.checkoutCfg.Currency,
			PaymentSessionID: sessionID,
			Status:           entity.StatusPending,
			CreatedAt:        now,
		}

		if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
			// The remote session already exists and the buyer can still pay.
			// Record the gap for out-of-band repair instead of failing the
			// checkout or touching the remote session.
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"session_id": sessionID,
				"user_id":    req.UserId,
				"item_type":  item.ItemType,
				"item_id":    item.ItemID,
			}).Error("enrollment persistence gap after checkout session creation")
			continue
		}

		_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
			EnrollmentID: enrollment.ID,
			EventType:    "enrollment_created",
			NewStatus:    enrollment.Status,
			CreatedAt:    now,
		})
	}
}
