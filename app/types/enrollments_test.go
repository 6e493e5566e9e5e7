package types

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewCreateCheckoutSessionRequestFromContextNormalizes(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/checkout/sessions", bytes.NewBufferString(`{"user_id":" user-1 ","user_email":" buyer@example.com ","items":[{"type":" Course ","id":" course-1 ","name":" Intro Course ","price_cents":4999}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewCreateCheckoutSessionRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.UserId != "user-1" || parsed.UserEmail != "buyer@example.com" {
		t.Fatalf("expected trimmed user fields, got %+v", parsed)
	}
	item := parsed.Items[0]
	if item.Type != "course" {
		t.Fatalf("expected lower-cased type, got %q", item.Type)
	}
	if item.Id != "course-1" || item.Name != "Intro Course" {
		t.Fatalf("expected trimmed item fields, got %+v", item)
	}
	if item.Quantity != 1 {
		t.Fatalf("expected omitted quantity to default to 1, got %d", item.Quantity)
	}
}

func TestCreateCheckoutSessionValidate(t *testing.T) {
	req := &CreateCheckoutSessionRequest{}
	if err := req.Validate(); err == nil {
		t.Fatal("expected user_id validation error")
	}

	req = &CreateCheckoutSessionRequest{UserId: "user-1"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected items validation error")
	}

	req.Items = []CheckoutItem{{Type: "course", Id: "course-1", Name: "Course", PriceCents: 0, Quantity: 1}}
	if err := req.Validate(); err == nil {
		t.Fatal("expected price_cents validation error")
	}

	req.Items[0].PriceCents = 4999
	req.Items[0].Quantity = -1
	if err := req.Validate(); err == nil {
		t.Fatal("expected quantity validation error")
	}

	req.Items[0].Quantity = 2
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestNewGetEnrollmentRequestFromContextAndValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/enrollments/enr-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(" enr-1 ")

	parsed, err := NewGetEnrollmentRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Id != "enr-1" {
		t.Fatalf("expected trimmed id, got %q", parsed.Id)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	empty := &GetEnrollmentRequest{}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected id validation error")
	}
}

func TestNewListEnrollmentsRequestFromContextAndValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/enrollments?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewListEnrollmentsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.UserId != "user-1" {
		t.Fatalf("unexpected user id %q", parsed.UserId)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	empty := &ListEnrollmentsRequest{}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected user_id validation error")
	}
}
