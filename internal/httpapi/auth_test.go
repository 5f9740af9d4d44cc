package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"bagatelle/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := userStore.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"dormant": {
				Username: "dormant",
				Password: "secret99",
				Role:     "attendant",
				Active:   false,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	_, err := manager.Login(domain.LoginRequest{Username: "dormant", Password: "secret99"})
	if err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
}

func TestParseTokenCarriesRole(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"carla": {
				Username: "carla",
				Password: "counter-pass",
				Role:     "attendant",
				Active:   true,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	resp, err := manager.Login(domain.LoginRequest{Username: "carla", Password: "counter-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "carla" || actor.Role != "attendant" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {Username: "admin", Password: "admin123", Role: "admin", Active: true},
		},
	}

	issuer := NewAuthManager("secret-one", time.Hour, userStore)
	resp, err := issuer.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	verifier := NewAuthManager("secret-two", time.Hour, userStore)
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}
