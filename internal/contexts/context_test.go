package contexts

import (
	"errors"
	"testing"

	"github.com/looplj/todohub/internal/objects"
)

func TestWithSession(t *testing.T) {
	ctx := t.Context()
	session := &objects.SessionWithUser{
		Session: objects.Session{ID: "s1", Token: "tok", UserID: "u1"},
		User:    objects.User{ID: "u1", Email: "u1@example.com"},
	}

	newCtx := WithSession(ctx, session)
	if newCtx == ctx {
		t.Error("WithSession should return a new context")
	}

	got, ok := GetSession(newCtx)
	if !ok {
		t.Fatal("GetSession should return true for existing session")
	}

	if got.Session.ID != "s1" {
		t.Errorf("expected session ID s1, got %s", got.Session.ID)
	}

	if got.User.Email != "u1@example.com" {
		t.Errorf("expected email u1@example.com, got %s", got.User.Email)
	}
}

func TestGetSession_Empty(t *testing.T) {
	session, ok := GetSession(t.Context())
	if ok {
		t.Error("GetSession should return false for empty context")
	}

	if session != nil {
		t.Error("GetSession should return nil for empty context")
	}
}

func TestContainerIsPerContextTree(t *testing.T) {
	base := t.Context()

	first := WithSession(base, &objects.SessionWithUser{Session: objects.Session{ID: "first"}})
	second := WithSession(base, &objects.SessionWithUser{Session: objects.Session{ID: "second"}})

	got1, _ := GetSession(first)
	got2, _ := GetSession(second)

	if got1.Session.ID != "first" || got2.Session.ID != "second" {
		t.Errorf("sessions leaked between contexts: %s, %s", got1.Session.ID, got2.Session.ID)
	}
}

func TestErrors(t *testing.T) {
	ctx := t.Context()

	if errs := GetErrors(ctx); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}

	ctx = AddError(ctx, errors.New("first"))
	ctx = AddError(ctx, nil)
	ctx = AddError(ctx, errors.New("second"))

	errs := GetErrors(ctx)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}

	if errs[0].Error() != "first" || errs[1].Error() != "second" {
		t.Errorf("unexpected errors: %v", errs)
	}
}
