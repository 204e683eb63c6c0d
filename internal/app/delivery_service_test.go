package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"trainee_notification_service/internal/domain/notification"

	"github.com/google/uuid"
)

func newDeliveryFixture(t *testing.T) (*DeliveryService, *memoryRepository, *fakeGateway, *fakeGateway) {
	t.Helper()
	repo := newMemoryRepository()
	emailGw := &fakeGateway{}
	inAppGw := &fakeGateway{}
	svc := NewDeliveryService(repo, map[notification.Channel]notification.Gateway{
		notification.ChannelEmail: emailGw,
		notification.ChannelInApp: inAppGw,
	}, testLogger())
	return svc, repo, emailGw, inAppGw
}

func TestProcessDeliveryRequestSendsEmail(t *testing.T) {
	svc, repo, emailGw, _ := newDeliveryFixture(t)
	ctx := context.Background()
	id := seedRecord(t, repo, notification.StatusScheduled, time.Now().Add(-time.Hour))

	if err := svc.ProcessDeliveryRequest(ctx, id); err != nil {
		t.Fatal(err)
	}
	if len(emailGw.sent) != 1 {
		t.Fatalf("gateway sent %d message(s), want 1", len(emailGw.sent))
	}

	stored, _ := repo.GetByID(ctx, id)
	if stored.Status != notification.StatusSent {
		t.Errorf("status = %s, want SENT", stored.Status)
	}
	if !stored.SentAt.Valid {
		t.Error("SentAt not set on successful delivery")
	}
}

func TestProcessDeliveryRequestInAppLandsUnread(t *testing.T) {
	svc, repo, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	rec := &notification.Record{
		ID:        uuid.New(),
		Type:      notification.TypeProgrammeCreated,
		Status:    notification.StatusPending,
		Recipient: notification.Recipient{Identity: "acct-1", Channel: notification.ChannelInApp},
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if err := svc.ProcessDeliveryRequest(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetByID(ctx, rec.ID)
	if stored.Status != notification.StatusUnread {
		t.Errorf("status = %s, want UNREAD", stored.Status)
	}
	if !stored.SentAt.Valid {
		t.Error("SentAt not set for in-app delivery")
	}
}

func TestProcessDeliveryRequestRecordsFailure(t *testing.T) {
	svc, repo, emailGw, _ := newDeliveryFixture(t)
	ctx := context.Background()
	emailGw.sendErr = fmt.Errorf("smtp: connection refused")
	id := seedRecord(t, repo, notification.StatusScheduled, time.Now().Add(-time.Hour))

	if err := svc.ProcessDeliveryRequest(ctx, id); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetByID(ctx, id)
	if stored.Status != notification.StatusFailed {
		t.Errorf("status = %s, want FAILED", stored.Status)
	}
	if !strings.HasPrefix(stored.StatusDetail, "Delivery failed:") {
		t.Errorf("StatusDetail = %q, want a delivery diagnostic", stored.StatusDetail)
	}
	if stored.SentAt.Valid {
		t.Error("SentAt must not be set on failure")
	}
}

func TestProcessDeliveryRequestDuplicateTriggerIsNoOp(t *testing.T) {
	svc, repo, emailGw, _ := newDeliveryFixture(t)
	ctx := context.Background()
	id := seedRecord(t, repo, notification.StatusScheduled, time.Now().Add(-time.Hour))

	if err := svc.ProcessDeliveryRequest(ctx, id); err != nil {
		t.Fatal(err)
	}
	before, _ := repo.GetByID(ctx, id)

	// At-least-once queue semantics: the same request arrives again.
	if err := svc.ProcessDeliveryRequest(ctx, id); err != nil {
		t.Fatal(err)
	}

	if len(emailGw.sent) != 1 {
		t.Errorf("gateway sent %d message(s), want 1 (no re-send)", len(emailGw.sent))
	}
	after, _ := repo.GetByID(ctx, id)
	if !after.SentAt.Time.Equal(before.SentAt.Time) || after.Status != before.Status {
		t.Error("duplicate trigger mutated the record")
	}
}

func TestProcessDeliveryRequestDiscardsSendBehindNewerEvent(t *testing.T) {
	svc, repo, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	// The record already carries a status event from the future relative to
	// this delivery attempt, so recording SENT must be a quiet discard.
	rec := &notification.Record{
		ID:     uuid.New(),
		Type:   notification.TypeProgrammeStart8Weeks,
		Status: notification.StatusScheduled,
		Recipient: notification.Recipient{
			Identity:       "acct-1",
			Channel:        notification.ChannelEmail,
			ContactAddress: "trainee@example.com",
		},
		LatestStatusEventAt: sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true},
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if err := svc.ProcessDeliveryRequest(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetByID(ctx, rec.ID)
	if stored.Status != notification.StatusScheduled {
		t.Errorf("status = %s, want SCHEDULED (discarded send must not mutate)", stored.Status)
	}
	if stored.SentAt.Valid {
		t.Error("SentAt set despite the discarded send")
	}
}

func TestProcessDeliveryRequestUnknownIDIsAcked(t *testing.T) {
	svc, _, emailGw, _ := newDeliveryFixture(t)

	if err := svc.ProcessDeliveryRequest(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unknown id should be tolerated, got %v", err)
	}
	if len(emailGw.sent) != 0 {
		t.Error("nothing should be sent for an unknown id")
	}
}
