package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetEnrollment(t *testing.T) {
	fixture := newServiceFixture()
	fixture.enrollmentRepo.seed(pendingEnrollment("enr-1", "cs_1", time.Now().UTC()))

	enrollment, err := fixture.svc.GetEnrollment(context.Background(), "enr-1")
	if err != nil {
		t.Fatalf("GetEnrollment returned error: %v", err)
	}
	if enrollment.ID != "enr-1" || enrollment.PaymentSessionID != "cs_1" {
		t.Fatalf("unexpected enrollment %+v", enrollment)
	}
}

func TestGetEnrollmentNotFound(t *testing.T) {
	fixture := newServiceFixture()

	if _, err := fixture.svc.GetEnrollment(context.Background(), "missing"); !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
}

func TestListUserEnrollments(t *testing.T) {
	fixture := newServiceFixture()
	now := time.Now().UTC()
	first := pendingEnrollment("enr-1", "cs_1", now)
	second := pendingEnrollment("enr-2", "cs_2", now)
	other := pendingEnrollment("enr-3", "cs_3", now)
	other.UserID = "user-2"
	fixture.enrollmentRepo.seed(first, second, other)

	items, err := fixture.svc.ListUserEnrollments(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListUserEnrollments returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 enrollments for user-1, got %d", len(items))
	}
}
