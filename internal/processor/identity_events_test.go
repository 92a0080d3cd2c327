package processor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"member-directory/internal/models"
)

type fakeSyncer struct {
	calls []models.IdentityPatch
	ids   []string
	err   error
}

func (f *fakeSyncer) ApplyIdentitySync(_ context.Context, identityID string, patch models.IdentityPatch) error {
	f.ids = append(f.ids, identityID)
	f.calls = append(f.calls, patch)
	return f.err
}

func newTestProcessor(repo IdentitySyncer) *EventProcessor {
	return NewEventProcessor(slog.Default(), repo, nil)
}

func TestProcessIdentityUpdate_BuildsFullName(t *testing.T) {
	repo := &fakeSyncer{}
	ep := newTestProcessor(repo)

	evt := models.IdentityUpdateEvent{
		EventID:    "msg_1",
		IdentityID: "user_1",
		FirstName:  "Ada",
		LastName:   "Lovelace",
	}

	if err := ep.ProcessIdentityUpdate(context.Background(), evt); err != nil {
		t.Fatal(err)
	}

	if len(repo.calls) != 1 {
		t.Fatalf("expected 1 sync call, got %d", len(repo.calls))
	}
	patch := repo.calls[0]
	if patch.FullName == nil || *patch.FullName != "Ada Lovelace" {
		t.Errorf("expected full name 'Ada Lovelace', got %v", patch.FullName)
	}
	if patch.PhotoURL != nil {
		t.Errorf("expected no photo in patch, got %v", *patch.PhotoURL)
	}
}

func TestProcessIdentityUpdate_SingleNamePart(t *testing.T) {
	repo := &fakeSyncer{}
	ep := newTestProcessor(repo)

	evt := models.IdentityUpdateEvent{
		EventID:    "msg_2",
		IdentityID: "user_1",
		LastName:   "Lovelace",
		PhotoURL:   "https://img.example.com/a.png",
	}

	if err := ep.ProcessIdentityUpdate(context.Background(), evt); err != nil {
		t.Fatal(err)
	}

	patch := repo.calls[0]
	if patch.FullName == nil || *patch.FullName != "Lovelace" {
		t.Errorf("expected single-part name 'Lovelace', got %v", patch.FullName)
	}
	if patch.PhotoURL == nil || *patch.PhotoURL != "https://img.example.com/a.png" {
		t.Errorf("expected photo url in patch, got %v", patch.PhotoURL)
	}
}

func TestProcessIdentityUpdate_EmptyEventIsNoop(t *testing.T) {
	repo := &fakeSyncer{}
	ep := newTestProcessor(repo)

	evt := models.IdentityUpdateEvent{
		EventID:    "msg_3",
		IdentityID: "user_1",
	}

	if err := ep.ProcessIdentityUpdate(context.Background(), evt); err != nil {
		t.Fatalf("no-op event must acknowledge, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Errorf("expected no sync call for empty event, got %d", len(repo.calls))
	}
}

func TestProcessIdentityUpdate_MissingIdentityIsAcknowledged(t *testing.T) {
	repo := &fakeSyncer{}
	ep := newTestProcessor(repo)

	evt := models.IdentityUpdateEvent{EventID: "msg_bad", FirstName: "X"}

	// a malformed event can never become valid; erroring would make the
	// provider redeliver it forever
	if err := ep.ProcessIdentityUpdate(context.Background(), evt); err != nil {
		t.Errorf("expected malformed event to be acknowledged, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Errorf("expected no sync call without an identity id, got %d", len(repo.calls))
	}
}

func TestProcessIdentityUpdate_RepositoryErrorSurfaces(t *testing.T) {
	repoErr := errors.New("connection refused")
	repo := &fakeSyncer{err: repoErr}
	ep := newTestProcessor(repo)

	evt := models.IdentityUpdateEvent{
		EventID:    "msg_4",
		IdentityID: "user_1",
		FirstName:  "Ada",
	}

	err := ep.ProcessIdentityUpdate(context.Background(), evt)
	if !errors.Is(err, repoErr) {
		t.Errorf("expected repository error to surface for transport retry, got %v", err)
	}
}

func TestProcessIdentityUpdate_Idempotent(t *testing.T) {
	repo := &fakeSyncer{}
	ep := newTestProcessor(repo)

	evt := models.IdentityUpdateEvent{
		EventID:    "msg_5",
		IdentityID: "user_1",
		FirstName:  "Ada",
	}

	// without redis the processor re-delegates; idempotence is the
	// repository's diff-only update, so both calls must carry the same patch
	for i := 0; i < 2; i++ {
		if err := ep.ProcessIdentityUpdate(context.Background(), evt); err != nil {
			t.Fatal(err)
		}
	}

	if len(repo.calls) != 2 {
		t.Fatalf("expected 2 delegations, got %d", len(repo.calls))
	}
	if *repo.calls[0].FullName != *repo.calls[1].FullName {
		t.Error("expected identical patches on redelivery")
	}
}
