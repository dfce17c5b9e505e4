package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/snapgram/internal/domain"
)

func TestAccountRepository_Create_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := db.Accounts()
	ctx := context.Background()

	a1 := &domain.Account{Email: "dup@example.com", Name: "One", PasswordHash: "h1"}
	if err := repo.Create(ctx, a1); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	a2 := &domain.Account{Email: "dup@example.com", Name: "Two", PasswordHash: "h2"}
	if err := repo.Create(ctx, a2); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	db := newTestDB(t)
	repo := db.Accounts()
	ctx := context.Background()

	a := &domain.Account{Email: "find@example.com", Name: "Find", PasswordHash: "h"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "find@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != a.ID || got.PasswordHash != "h" {
		t.Fatalf("unexpected account: %+v", got)
	}

	byID, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Email != a.Email {
		t.Fatalf("expected email %q, got %q", a.Email, byID.Email)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_Revoke(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	s := &domain.Session{
		ID:        uuid.NewString(),
		AccountID: user.AccountID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Sessions().Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := db.Sessions().GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Active(time.Now()) {
		t.Fatal("expected new session to be active")
	}

	if err := db.Sessions().Revoke(ctx, s.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	got, err = db.Sessions().GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID after revoke: %v", err)
	}
	if got.RevokedAt == nil || got.Active(time.Now()) {
		t.Fatal("expected revoked session to be inactive")
	}

	if err := db.Sessions().Revoke(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second revoke, got %v", err)
	}
}
