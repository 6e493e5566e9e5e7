package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-enrollments/app/factory"
	"github.com/vibast-solutions/ms-go-enrollments/app/mapper"
	"github.com/vibast-solutions/ms-go-enrollments/app/service"
	"github.com/vibast-solutions/ms-go-enrollments/app/types"
)

const stripeSignatureHeader = "Stripe-Signature"

type EnrollmentController struct {
	enrollmentService *service.EnrollmentService
	logger            logrus.FieldLogger
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{
		enrollmentService: enrollmentService,
		logger:            factory.NewModuleLogger("enrollments-controller"),
	}
}

func (c *EnrollmentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *EnrollmentController) CreateCheckoutSession(ctx echo.Context) error {
	req, err := types.NewCreateCheckoutSessionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.enrollmentService.CreateCheckoutSession(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrPriceMismatch):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrItemNotFound):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrGatewayUnavailable):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Checkout session creation failed at gateway")
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create checkout session failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.CheckoutSessionResponse{
		SessionId:   result.SessionID,
		RedirectUrl: result.RedirectURL,
	})
}

func (c *EnrollmentController) GetEnrollment(ctx echo.Context) error {
	req, err := types.NewGetEnrollmentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.enrollmentService.GetEnrollment(ctx.Request().Context(), req.Id)
	if err != nil {
		if errors.Is(err, service.ErrEnrollmentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "enrollment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get enrollment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.EnrollmentEnvelopeResponse{Enrollment: mapper.EnrollmentToResponse(item)})
}

func (c *EnrollmentController) ListEnrollments(ctx echo.Context) error {
	req, err := types.NewListEnrollmentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.enrollmentService.ListUserEnrollments(ctx.Request().Context(), req.UserId)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List enrollments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListEnrollmentsResponse{Enrollments: mapper.EnrollmentsToResponse(items)})
}

// HandleProviderNotification is the webhook entry point. The body is read
// raw and passed through untouched: the provider signs the exact bytes it
// sent, so any re-serialization before verification would break the check.
//
// Response codes drive the provider's retry policy: 2xx acknowledges
// (including recognized no-ops and flagged states), 4xx rejects permanently,
// 5xx asks for redelivery.
func (c *EnrollmentController) HandleProviderNotification(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "unable to read request body")
	}
	signature := ctx.Request().Header.Get(stripeSignatureHeader)
	providerName := ctx.Param("provider")

	result, err := c.enrollmentService.HandleProviderNotification(ctx.Request().Context(), providerName, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProviderUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, "provider is not supported")
		case errors.Is(err, service.ErrInvalidSignature):
			return c.writeError(ctx, http.StatusBadRequest, "signature verification failed")
		case errors.Is(err, service.ErrMalformedNotification):
			return c.writeError(ctx, http.StatusBadRequest, "malformed notification payload")
		case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrGatewayUnavailable):
			c.logger.WithError(err).Error("Transient failure while processing notification")
			return c.writeError(ctx, http.StatusServiceUnavailable, "temporarily unavailable, retry")
		default:
			c.logger.WithError(err).Error("Handle provider notification failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "notification " + result.Outcome})
}

func (c *EnrollmentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
