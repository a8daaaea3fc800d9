package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/service"
	"storeledger/backend/internal/session"
	"storeledger/backend/internal/store"
)

type userDirectoryStub struct {
	mu    sync.Mutex
	users map[string]domain.UserProfile
}

func newUserDirectoryStub(users ...domain.UserProfile) *userDirectoryStub {
	stub := &userDirectoryStub{users: make(map[string]domain.UserProfile)}
	for _, u := range users {
		stub.users[u.Username] = u
	}
	return stub
}

func (s *userDirectoryStub) Authenticate(_ context.Context, username string, password string) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok || user.Password != password {
		return domain.UserProfile{}, service.ErrInvalidCredentials
	}
	return user, nil
}

func (s *userDirectoryStub) GetUser(_ context.Context, username string) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return domain.UserProfile{}, store.ErrNotFound
	}
	return user, nil
}

func (s *userDirectoryStub) set(user domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
}

func (s *userDirectoryStub) remove(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}

func stubUser(username, password, role, staffID string) domain.UserProfile {
	return domain.UserProfile{User: domain.User{
		Username: username,
		Password: password,
		Role:     role,
		StaffID:  &staffID,
	}}
}

func TestAuthManagerLoginAndAuthenticate(t *testing.T) {
	users := newUserDirectoryStub(stubUser("user", "secret1", domain.RoleAdmin, "staff001"))
	manager := NewAuthManager("test-secret", time.Hour, "482913", users, session.NewMemoryRegistry())
	ctx := context.Background()

	resp, err := manager.Login(ctx, domain.LoginRequest{Username: " user ", Password: "secret1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleAdmin || resp.Username != "user" {
		t.Fatalf("unexpected login response: %+v", resp)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		t.Fatalf("expected access token")
	}

	actor, err := manager.Authenticate(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if actor.Username != "user" || actor.StaffID != "staff001" || actor.SessionID == "" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestAuthManagerRejectsBadPassword(t *testing.T) {
	users := newUserDirectoryStub(stubUser("user", "secret1", domain.RoleAdmin, "staff001"))
	manager := NewAuthManager("test-secret", time.Hour, "482913", users, nil)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "user", Password: "nope"})
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthManagerUsesCurrentUserRecord(t *testing.T) {
	users := newUserDirectoryStub(stubUser("test", "secret1", domain.RoleAdmin, "staff002"))
	manager := NewAuthManager("test-secret", time.Hour, "482913", users, nil)
	ctx := context.Background()

	resp, err := manager.Login(ctx, domain.LoginRequest{Username: "test", Password: "secret1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users.set(stubUser("test", "secret1", domain.RoleUser, "staff003"))
	actor, err := manager.Authenticate(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if actor.Role != domain.RoleUser || actor.StaffID != "staff003" {
		t.Fatalf("expected role and staff from the stored user, got %+v", actor)
	}

	users.remove("test")
	if _, err := manager.Authenticate(ctx, resp.AccessToken); err == nil {
		t.Fatalf("expected removed user to be rejected")
	}
}

func TestAuthManagerLogoutRevokesSession(t *testing.T) {
	users := newUserDirectoryStub(stubUser("user", "secret1", domain.RoleAdmin, "staff001"))
	manager := NewAuthManager("test-secret", time.Hour, "482913", users, session.NewMemoryRegistry())
	ctx := context.Background()

	resp, err := manager.Login(ctx, domain.LoginRequest{Username: "user", Password: "secret1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.Authenticate(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if err := manager.Logout(ctx, actor); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := manager.Authenticate(ctx, resp.AccessToken); err == nil {
		t.Fatalf("expected revoked session to be rejected")
	}
}

func TestAuthManagerRejectsForeignAndExpiredTokens(t *testing.T) {
	users := newUserDirectoryStub(stubUser("user", "secret1", domain.RoleAdmin, "staff001"))
	ctx := context.Background()

	other := NewAuthManager("other-secret", time.Hour, "482913", users, nil)
	foreign, err := other.Login(ctx, domain.LoginRequest{Username: "user", Password: "secret1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	manager := NewAuthManager("test-secret", time.Minute, "482913", users, nil)
	if _, err := manager.Authenticate(ctx, foreign.AccessToken); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected token from another secret to be rejected, got %v", err)
	}

	resp, err := manager.Login(ctx, domain.LoginRequest{Username: "user", Password: "secret1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	manager.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	if _, err := manager.Authenticate(ctx, resp.AccessToken); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestValidateManagerPIN(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "482913", newUserDirectoryStub(), nil)
	if !manager.ValidateManagerPIN(" 482913 ") {
		t.Fatalf("expected configured pin to validate")
	}
	if manager.ValidateManagerPIN("000000") || manager.ValidateManagerPIN("") {
		t.Fatalf("expected wrong or empty pin to fail")
	}

	disabled := NewAuthManager("test-secret", time.Hour, "", newUserDirectoryStub(), nil)
	if disabled.ValidateManagerPIN("disabled") {
		t.Fatalf("an unset pin must not accept the placeholder value")
	}
}
