package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/provider"
)

func TestRunExpirePendingBatchFailsAgedRecords(t *testing.T) {
	fixture := newServiceFixture()
	now := time.Now().UTC()
	aged := pendingEnrollment("enr-old", "cs_old", now.Add(-48*time.Hour))
	fresh := pendingEnrollment("enr-new", "cs_new", now.Add(-1*time.Hour))
	done := pendingEnrollment("enr-done", "cs_done", now.Add(-48*time.Hour))
	done.Status = entity.StatusCompleted
	fixture.enrollmentRepo.seed(aged, fresh, done)

	if err := fixture.svc.RunExpirePendingBatch(context.Background()); err != nil {
		t.Fatalf("RunExpirePendingBatch returned error: %v", err)
	}

	if got := fixture.enrollmentRepo.bySession("cs_old")[0].Status; got != entity.StatusFailed {
		t.Fatalf("aged pending record should be failed, got %d", got)
	}
	if got := fixture.enrollmentRepo.bySession("cs_new")[0].Status; got != entity.StatusPending {
		t.Fatalf("fresh pending record must stay pending, got %d", got)
	}
	if got := fixture.enrollmentRepo.bySession("cs_done")[0].Status; got != entity.StatusCompleted {
		t.Fatalf("completed record must not be expired, got %d", got)
	}
	if fixture.eventRepo.count() != 1 {
		t.Fatalf("expected 1 expiry event, got %d", fixture.eventRepo.count())
	}
}

func TestRunReconcileBatchAppliesProviderStatus(t *testing.T) {
	fixture := newServiceFixture()
	now := time.Now().UTC()
	fixture.enrollmentRepo.seed(
		pendingEnrollment("enr-1", "cs_stale", now.Add(-time.Hour)),
		pendingEnrollment("enr-2", "cs_stale", now.Add(-time.Hour)),
	)
	fixture.providerClient.sessionStatus = map[string]int32{
		"cs_stale": provider.EventKindCompleted,
	}

	if err := fixture.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch returned error: %v", err)
	}
	for _, record := range fixture.enrollmentRepo.bySession("cs_stale") {
		if record.Status != entity.StatusCompleted {
			t.Fatalf("record %s should be completed, got %d", record.ID, record.Status)
		}
		if record.CompletedAt == nil {
			t.Fatalf("record %s missing completed_at", record.ID)
		}
	}
}

func TestRunReconcileBatchSkipsSessionsStillOpen(t *testing.T) {
	fixture := newServiceFixture()
	fixture.enrollmentRepo.seed(pendingEnrollment("enr-1", "cs_open", time.Now().UTC().Add(-time.Hour)))
	fixture.providerClient.sessionStatus = map[string]int32{} // unknown kind

	if err := fixture.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch returned error: %v", err)
	}
	if got := fixture.enrollmentRepo.bySession("cs_open")[0].Status; got != entity.StatusPending {
		t.Fatalf("open session must stay pending, got %d", got)
	}
}

func TestRunReconcileBatchSurfacesInconsistentState(t *testing.T) {
	fixture := newServiceFixture()
	now := time.Now().UTC()
	failed := pendingEnrollment("enr-failed", "cs_mixed", now.Add(-time.Hour))
	failed.Status = entity.StatusFailed
	pending := pendingEnrollment("enr-pending", "cs_mixed", now.Add(-time.Hour))
	fixture.enrollmentRepo.seed(failed, pending)
	fixture.providerClient.sessionStatus = map[string]int32{
		"cs_mixed": provider.EventKindCompleted,
	}

	err := fixture.svc.RunReconcileBatch(context.Background())
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if got := fixture.enrollmentRepo.bySession("cs_mixed")[0].Status; !entity.TerminalStatus(got) && got != entity.StatusPending {
		t.Fatalf("unexpected status %d", got)
	}
}

func TestRunReconcileBatchKeepsGoingAfterProviderError(t *testing.T) {
	fixture := newServiceFixture()
	fixture.enrollmentRepo.seed(pendingEnrollment("enr-1", "cs_stale", time.Now().UTC().Add(-time.Hour)))
	fixture.providerClient.statusErr = errors.New("stripe 500")

	err := fixture.svc.RunReconcileBatch(context.Background())
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if got := fixture.enrollmentRepo.bySession("cs_stale")[0].Status; got != entity.StatusPending {
		t.Fatalf("record must stay pending on provider error, got %d", got)
	}
}
