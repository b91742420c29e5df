package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

type operatorStoreStub struct {
	mu        sync.Mutex
	operators map[string]domain.OperatorAccount
	updates   int
}

func (s *operatorStoreStub) CreateOperator(_ context.Context, operator domain.OperatorAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.operators == nil {
		s.operators = make(map[string]domain.OperatorAccount)
	}
	s.operators[operator.Name] = operator
	return nil
}

func (s *operatorStoreStub) ListOperators(_ context.Context) ([]domain.OperatorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OperatorAccount, 0, len(s.operators))
	for _, operator := range s.operators {
		out = append(out, operator)
	}
	return out, nil
}

func (s *operatorStoreStub) UpdateOperatorPIN(_ context.Context, name string, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	operator := s.operators[name]
	operator.PIN = pin
	s.operators[name] = operator
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPIN(t *testing.T) {
	store := &operatorStoreStub{
		operators: map[string]domain.OperatorAccount{
			"admin": {
				Name:      "admin",
				PIN:       "975310",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Name: "admin",
		PIN:  "975310",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	operators, err := store.ListOperators(context.Background())
	if err != nil {
		t.Fatalf("list operators failed: %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("expected 1 operator, got %d", len(operators))
	}
	if operators[0].PIN == "975310" {
		t.Fatalf("expected pin to be upgraded from plain-text")
	}
	if !strings.HasPrefix(operators[0].PIN, "$2") {
		t.Fatalf("expected bcrypt pin hash, got %s", operators[0].PIN)
	}
}

func TestCreateOperatorStoresPINHash(t *testing.T) {
	store := &operatorStoreStub{operators: map[string]domain.OperatorAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, store)

	operator, err := manager.CreateOperator(domain.OperatorCreateRequest{
		Name: "turno-tarde",
		PIN:  "4827",
	})
	if err != nil {
		t.Fatalf("create operator failed: %v", err)
	}
	if operator.Name != "turno-tarde" {
		t.Fatalf("unexpected name %s", operator.Name)
	}
	if operator.Role != "operator" {
		t.Fatalf("expected operator role, got %s", operator.Role)
	}

	operators, err := store.ListOperators(context.Background())
	if err != nil {
		t.Fatalf("list operators failed: %v", err)
	}
	var found *domain.OperatorAccount
	for i := range operators {
		if operators[i].Name == "turno-tarde" {
			found = &operators[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected operator to be saved")
	}
	if found.PIN == "4827" {
		t.Fatalf("expected operator pin to be hashed")
	}
	if !strings.HasPrefix(found.PIN, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.PIN)
	}

	_, err = manager.Login(domain.LoginRequest{
		Name: "turno-tarde",
		PIN:  "4827",
	})
	if err != nil {
		t.Fatalf("login with hashed pin failed: %v", err)
	}
}

func TestCheckPINStrength(t *testing.T) {
	cases := []struct {
		pin     string
		wantErr bool
	}{
		{"4827", false},
		{"975310", false},
		{"48", true},
		{"48a2", true},
		{"1111", true},
		{"1234", true},
		{"9876", true},
	}
	for _, tc := range cases {
		err := checkPINStrength(tc.pin)
		if tc.wantErr && err == nil {
			t.Fatalf("pin %q: expected error, got nil", tc.pin)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("pin %q: unexpected error: %v", tc.pin, err)
		}
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	store := &operatorStoreStub{
		operators: map[string]domain.OperatorAccount{
			"admin": {Name: "admin", PIN: "975310", Role: "admin", Active: true, CreatedAt: time.Now().UTC()},
		},
	}

	issuer := NewAuthManager("secret-one", time.Hour, store)
	resp, err := issuer.Login(domain.LoginRequest{Name: "admin", PIN: "975310"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	verifier := NewAuthManager("secret-two", time.Hour, store)
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}

	actor, err := issuer.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token with matching secret failed: %v", err)
	}
	if actor.Name != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestInactiveOperatorCannotLogin(t *testing.T) {
	store := &operatorStoreStub{
		operators: map[string]domain.OperatorAccount{
			"baja": {Name: "baja", PIN: "4827", Role: "operator", Active: false, CreatedAt: time.Now().UTC()},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	if _, err := manager.Login(domain.LoginRequest{Name: "baja", PIN: "4827"}); err == nil {
		t.Fatalf("expected inactive account login to fail")
	}
}
