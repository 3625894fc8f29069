package denorm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/model"
)

type fakeReferenceStore struct {
	members  map[string]*model.TeamMember
	contacts map[string]*model.Contact
	err      error
}

func (s *fakeReferenceStore) GetTeamMember(_ context.Context, id string) (*model.TeamMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.members[id], nil
}

func (s *fakeReferenceStore) GetContact(_ context.Context, id string) (*model.Contact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.contacts[id], nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func strPtr(s string) *string {
	return &s
}

func TestResolveTaskFillsDisplayFields(t *testing.T) {
	member := &model.TeamMember{ID: uuid.New(), Name: "Dana"}
	contact := &model.Contact{ID: uuid.New(), Name: "Acme Corp", Phone: "555-0100"}

	store := &fakeReferenceStore{
		members:  map[string]*model.TeamMember{member.ID.String(): member},
		contacts: map[string]*model.Contact{contact.ID.String(): contact},
	}
	resolver := NewResolver(store, zap.NewNop())

	task := &model.Task{
		ID:         uuid.New(),
		AssigneeID: uuidPtr(member.ID),
		ContactID:  uuidPtr(contact.ID),
	}
	resolver.ResolveTask(context.Background(), task)

	if task.AssigneeName == nil || *task.AssigneeName != "Dana" {
		t.Fatalf("expected assignee name Dana, got %v", task.AssigneeName)
	}
	if task.ContactName == nil || *task.ContactName != "Acme Corp" {
		t.Fatalf("expected contact name, got %v", task.ContactName)
	}
	if task.ContactPhone == nil || *task.ContactPhone != "555-0100" {
		t.Fatalf("expected contact phone, got %v", task.ContactPhone)
	}
}

func TestResolveTaskClearsStaleFieldsOnMissingReference(t *testing.T) {
	store := &fakeReferenceStore{}
	resolver := NewResolver(store, zap.NewNop())

	task := &model.Task{
		ID:           uuid.New(),
		AssigneeID:   uuidPtr(uuid.New()),
		ContactID:    uuidPtr(uuid.New()),
		AssigneeName: strPtr("stale"),
		ContactName:  strPtr("stale"),
		ContactPhone: strPtr("stale"),
	}
	resolver.ResolveTask(context.Background(), task)

	if task.AssigneeName != nil || task.ContactName != nil || task.ContactPhone != nil {
		t.Fatal("expected stale display fields cleared when references are missing")
	}
}

func TestResolveTaskNilReferencesClearFields(t *testing.T) {
	resolver := NewResolver(&fakeReferenceStore{}, zap.NewNop())

	task := &model.Task{
		ID:           uuid.New(),
		AssigneeName: strPtr("stale"),
	}
	resolver.ResolveTask(context.Background(), task)

	if task.AssigneeName != nil {
		t.Fatal("expected display fields cleared when no references are set")
	}
}

func TestResolveTaskLookupErrorDoesNotFailWrite(t *testing.T) {
	store := &fakeReferenceStore{err: errors.New("connection refused")}
	resolver := NewResolver(store, zap.NewNop())

	task := &model.Task{
		ID:         uuid.New(),
		AssigneeID: uuidPtr(uuid.New()),
	}
	resolver.ResolveTask(context.Background(), task)

	if task.AssigneeName != nil {
		t.Fatal("expected display field left nil on lookup error")
	}
}
