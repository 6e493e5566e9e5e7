package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type CheckoutItem struct {
	Type       string `json:"type"`
	Id         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int32  `json:"quantity"`
}

type CreateCheckoutSessionRequest struct {
	UserId    string         `json:"user_id"`
	UserEmail string         `json:"user_email"`
	Items     []CheckoutItem `json:"items"`
}

func NewCreateCheckoutSessionRequestFromContext(ctx echo.Context) (*CreateCheckoutSessionRequest, error) {
	var body CreateCheckoutSessionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.UserId = strings.TrimSpace(body.UserId)
	body.UserEmail = strings.TrimSpace(body.UserEmail)
	for i := range body.Items {
		body.Items[i].Type = strings.ToLower(strings.TrimSpace(body.Items[i].Type))
		body.Items[i].Id = strings.TrimSpace(body.Items[i].Id)
		body.Items[i].Name = strings.TrimSpace(body.Items[i].Name)
		if body.Items[i].Quantity == 0 {
			body.Items[i].Quantity = 1
		}
	}

	return &body, nil
}

func (r *CreateCheckoutSessionRequest) Validate() error {
	if strings.TrimSpace(r.UserId) == "" {
		return errors.New("user_id is required")
	}
	if len(r.Items) == 0 {
		return errors.New("items must not be empty")
	}
	for _, item := range r.Items {
		if strings.TrimSpace(item.Type) == "" {
			return errors.New("item type is required")
		}
		if strings.TrimSpace(item.Id) == "" {
			return errors.New("item id is required")
		}
		if item.PriceCents <= 0 {
			return errors.New("item price_cents must be > 0")
		}
		if item.Quantity <= 0 {
			return errors.New("item quantity must be > 0")
		}
	}
	return nil
}

type CheckoutSessionResponse struct {
	SessionId   string `json:"sessionId"`
	RedirectUrl string `json:"redirectUrl"`
}

type GetEnrollmentRequest struct {
	Id string
}

func NewGetEnrollmentRequestFromContext(ctx echo.Context) (*GetEnrollmentRequest, error) {
	return &GetEnrollmentRequest{Id: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetEnrollmentRequest) Validate() error {
	if r.Id == "" {
		return errors.New("invalid enrollment id")
	}
	return nil
}

type ListEnrollmentsRequest struct {
	UserId string
}

func NewListEnrollmentsRequestFromContext(ctx echo.Context) (*ListEnrollmentsRequest, error) {
	return &ListEnrollmentsRequest{UserId: strings.TrimSpace(ctx.QueryParam("user_id"))}, nil
}

func (r *ListEnrollmentsRequest) Validate() error {
	if r.UserId == "" {
		return errors.New("user_id is required")
	}
	return nil
}

type Enrollment struct {
	Id               string `json:"id"`
	UserId           string `json:"user_id"`
	ItemType         string `json:"item_type"`
	ItemId           string `json:"item_id"`
	ItemName         string `json:"item_name"`
	AmountCents      int64  `json:"amount_cents"`
	Quantity         int32  `json:"quantity"`
	Currency         string `json:"currency"`
	PaymentSessionId string `json:"payment_session_id"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

type EnrollmentEnvelopeResponse struct {
	Enrollment *Enrollment `json:"enrollment"`
}

type ListEnrollmentsResponse struct {
	Enrollments []*Enrollment `json:"enrollments"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
