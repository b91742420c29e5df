package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

type AuthManager struct {
	mu            sync.RWMutex
	secret        []byte
	tokenTTL      time.Duration
	operatorStore OperatorStore
	operators     map[string]credential
}

type OperatorStore interface {
	CreateOperator(ctx context.Context, operator domain.OperatorAccount) error
	ListOperators(ctx context.Context) ([]domain.OperatorAccount, error)
	UpdateOperatorPIN(ctx context.Context, name string, pin string) error
}

type credential struct {
	pin     string
	role    string
	active  bool
	created time.Time
}

type venueCustomClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, operatorStore OperatorStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:        []byte(secret),
		tokenTTL:      tokenTTL,
		operatorStore: operatorStore,
		operators:     make(map[string]credential),
	}
	// Startup-time load, before any request context exists.
	manager.bootstrapOperators(context.Background())
	return manager
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	// Reload on every login so operators added outside this process (e.g.
	// directly in the database) can sign in without a restart. Fine at a
	// single-venue login rate.
	a.bootstrapOperators(context.Background())
	name := strings.ToLower(strings.TrimSpace(req.Name))
	a.mu.RLock()
	cred, ok := a.operators[name]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	if !verifyPIN(cred.pin, req.PIN) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(name, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &venueCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Name: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(name, role string, expiresAt time.Time) (string, error) {
	claims := venueCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "cybermanager",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateOperator(req domain.OperatorCreateRequest) (domain.OperatorUser, error) {
	a.bootstrapOperators(context.Background())
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" || len(name) < 3 {
		return domain.OperatorUser{}, fmt.Errorf("name must be at least 3 characters")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return domain.OperatorUser{}, fmt.Errorf("name must not contain spaces")
	}
	if err := checkPINStrength(req.PIN); err != nil {
		return domain.OperatorUser{}, err
	}

	a.mu.RLock()
	_, exists := a.operators[name]
	a.mu.RUnlock()
	if exists {
		return domain.OperatorUser{}, fmt.Errorf("operator already exists")
	}

	now := time.Now().UTC()
	pinHash, err := hashPIN(req.PIN)
	if err != nil {
		return domain.OperatorUser{}, fmt.Errorf("failed to hash pin")
	}

	if a.operatorStore != nil {
		err := a.operatorStore.CreateOperator(context.Background(), domain.OperatorAccount{
			Name:      name,
			PIN:       pinHash,
			Role:      "operator",
			Active:    true,
			CreatedAt: now,
		})
		if err != nil {
			return domain.OperatorUser{}, err
		}
	}

	a.mu.Lock()
	a.operators[name] = credential{
		pin:     pinHash,
		role:    "operator",
		active:  true,
		created: now,
	}
	a.mu.Unlock()

	return domain.OperatorUser{
		Name:      name,
		Role:      "operator",
		Active:    true,
		CreatedAt: now,
	}, nil
}

func (a *AuthManager) ListOperators() []domain.OperatorUser {
	a.bootstrapOperators(context.Background())
	a.mu.RLock()
	result := make([]domain.OperatorUser, 0, len(a.operators))
	for name, cred := range a.operators {
		if cred.role != "operator" {
			continue
		}
		result = append(result, domain.OperatorUser{
			Name:      name,
			Role:      cred.role,
			Active:    cred.active,
			CreatedAt: cred.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// bootstrapOperators loads accounts from the store into the credential cache,
// upgrading any legacy plain-text PIN to a bcrypt hash as it goes.
func (a *AuthManager) bootstrapOperators(ctx context.Context) {
	if a.operatorStore == nil {
		return
	}

	operators, err := a.operatorStore.ListOperators(ctx)
	if err != nil || len(operators) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, operator := range operators {
		name := strings.ToLower(strings.TrimSpace(operator.Name))
		if name == "" {
			continue
		}
		pin := operator.PIN
		if !isPINHash(pin) {
			hashed, err := hashPIN(pin)
			if err == nil {
				pin = hashed
				_ = a.operatorStore.UpdateOperatorPIN(ctx, name, hashed)
			}
		}
		a.operators[name] = credential{
			pin:     pin,
			role:    operator.Role,
			active:  operator.Active,
			created: operator.CreatedAt,
		}
	}
}

// checkPINStrength rejects PINs an onlooker can guess from two key presses:
// too short, one repeated digit, or an ascending/descending run.
func checkPINStrength(pin string) error {
	pin = strings.TrimSpace(pin)
	if len(pin) < 4 {
		return fmt.Errorf("pin must be at least 4 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("pin must contain digits only")
		}
	}

	allSame := true
	ascending := true
	descending := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
		}
		if pin[i] != pin[i-1]+1 {
			ascending = false
		}
		if pin[i] != pin[i-1]-1 {
			descending = false
		}
	}
	if allSame || ascending || descending {
		return fmt.Errorf("pin is too predictable")
	}
	return nil
}

func verifyPIN(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPINHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPINHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
