package directory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, "Europe/Madrid")
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc, repo
}

func TestCreateCenter_DefaultsTimezoneAndValidates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateCenter(ctx, CenterInput{Name: "  Centro Norte "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Centro Norte" || c.Timezone != "Europe/Madrid" {
		t.Fatalf("unexpected center %+v", c)
	}

	if _, err := svc.CreateCenter(ctx, CenterInput{Name: ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty name, got %v", err)
	}
	if _, err := svc.CreateCenter(ctx, CenterInput{Name: "x", Timezone: "Not/AZone"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad timezone, got %v", err)
	}
}

func TestDeleteCenter_RefusedWhileUsersAssigned(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCenter(ctx, CenterInput{Name: "Sur", Timezone: "America/New_York"})
	u, err := svc.CreateUser(ctx, UserInput{FullName: "Ana", CenterID: c.ID})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := svc.DeleteCenter(ctx, c.ID); !errors.Is(err, ErrCenterInUse) {
		t.Fatalf("expected ErrCenterInUse, got %v", err)
	}
	if err := svc.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := svc.DeleteCenter(ctx, c.ID); err != nil {
		t.Fatalf("delete center: %v", err)
	}
	if _, err := svc.GetCenter(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateUser_GeneratesTokenAndResolvesAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateCenter(ctx, CenterInput{Name: "Este", Timezone: "Asia/Tokyo"})
	u, err := svc.CreateUser(ctx, UserInput{FullName: " Luis ", CenterID: c.ID})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.FullName != "Luis" {
		t.Fatalf("expected trimmed name, got %q", u.FullName)
	}
	if len(u.LoginToken) != loginTokenBytes*2 || strings.Trim(u.LoginToken, "0123456789abcdef") != "" {
		t.Fatalf("expected 48 hex chars, got %q", u.LoginToken)
	}

	a, err := svc.AccountByToken(ctx, u.LoginToken)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if a.ID != u.ID || a.Timezone != "Asia/Tokyo" {
		t.Fatalf("unexpected account %+v", a)
	}

	for _, tok := range []string{"", "   ", "unknown", strings.Repeat("a", 500)} {
		if _, err := svc.AccountByToken(ctx, tok); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", tok, err)
		}
	}
}

func TestCreateUser_UnknownCenter(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateUser(context.Background(), UserInput{FullName: "Ana", CenterID: "7b0c6f52-4d2c-4a8e-9df1-2f0b8a1d6c11"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegenerateToken_InvalidatesOldToken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.CreateUser(ctx, UserInput{FullName: "Ana"})
	old := u.LoginToken

	u2, err := svc.RegenerateToken(ctx, u.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if u2.LoginToken == old {
		t.Fatalf("expected new token")
	}
	if _, err := svc.AccountByToken(ctx, old); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old token rejected, got %v", err)
	}
}

func TestCreateUser_TokenCollisionIsDuplicate(t *testing.T) {
	svc, _ := newTestService()
	svc.newToken = func() (string, error) { return "fixed-token-value", nil }
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, UserInput{FullName: "A"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.CreateUser(ctx, UserInput{FullName: "B"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestListUsers_Pagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.clock = func() time.Time { return at }
		if _, err := svc.CreateUser(ctx, UserInput{FullName: "user"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, err := svc.ListUsers(ctx, UserFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 users, got %d", len(page))
	}
	if !page[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("expected newest-first ordering, got %s", page[0].CreatedAt)
	}
}

func TestProfiles_ManagerNeedsCenterAndPromotion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateProfile(ctx, ProfileInput{Email: "m@example.com", Role: "manager"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	c, _ := svc.CreateCenter(ctx, CenterInput{Name: "Oeste"})
	p, err := svc.CreateProfile(ctx, ProfileInput{Email: " M@Example.com ", Role: "manager", CenterID: c.ID})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if p.Email != "m@example.com" {
		t.Fatalf("expected normalized email, got %q", p.Email)
	}

	admin := "admin"
	p, err = svc.UpdateProfile(ctx, p.ID, ProfilePatch{Role: &admin})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if p.Role != "admin" {
		t.Fatalf("expected admin, got %q", p.Role)
	}

	bogus := "owner"
	if _, err := svc.UpdateProfile(ctx, p.ID, ProfilePatch{Role: &bogus}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown role, got %v", err)
	}
	if _, err := svc.CreateProfile(ctx, ProfileInput{Email: "m@example.com", Role: "admin"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused email, got %v", err)
	}
}
