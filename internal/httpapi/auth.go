package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/session"
	"storeledger/backend/internal/store"
	"storeledger/backend/internal/xid"
)

var errInvalidToken = errors.New("invalid or expired token")

// UserDirectory is the subset of service.UserDirectory the auth layer needs.
type UserDirectory interface {
	Authenticate(ctx context.Context, username string, password string) (domain.UserProfile, error)
	GetUser(ctx context.Context, username string) (domain.UserProfile, error)
}

type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	users      UserDirectory
	sessions   session.Registry
	now        func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, users UserDirectory, sessions session.Registry) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if sessions == nil {
		sessions = session.NewMemoryRegistry()
	}
	// An empty PIN stays unhashed, so every PIN check fails.
	managerPIN = strings.TrimSpace(managerPIN)
	if managerPIN != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(managerPIN), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[auth] WARN: manager pin could not be hashed, pin checks disabled: %v", err)
			managerPIN = ""
		} else {
			managerPIN = string(hashed)
		}
	}

	return &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: managerPIN,
		users:      users,
		sessions:   sessions,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login checks the credentials and opens a session. The returned token is
// valid until it expires or the session is revoked.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	profile, err := a.users.Authenticate(ctx, username, req.Password)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	issuedAt := a.now()
	expiresAt := issuedAt.Add(a.tokenTTL)
	sessionID := xid.New("sess")
	if err := a.sessions.Register(ctx, sessionID, session.Record{Username: profile.Username, IssuedAt: issuedAt}, a.tokenTTL); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("register session: %w", err)
	}

	token, err := a.sign(profile.Username, profile.Role, sessionID, issuedAt, expiresAt)
	if err != nil {
		_ = a.sessions.Revoke(ctx, sessionID)
		return domain.LoginResponse{}, err
	}
	log.Printf("[auth] login user=%s role=%s", profile.Username, profile.Role)

	return domain.LoginResponse{
		AccessToken: token,
		Username:    profile.Username,
		Role:        profile.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// Authenticate resolves a token to the actor behind it. The session must still
// be registered and the user must still exist; role and staff come from the
// freshly loaded user, not from the token claims.
func (a *AuthManager) Authenticate(ctx context.Context, tokenStr string) (domain.Actor, error) {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return domain.Actor{}, err
	}

	record, ok, err := a.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("lookup session: %w", err)
	}
	if !ok || record.Username != claims.Subject {
		return domain.Actor{}, errors.New("session expired or revoked")
	}

	profile, err := a.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Actor{}, errors.New("user no longer exists")
		}
		return domain.Actor{}, err
	}

	actor := domain.Actor{
		Username:  profile.Username,
		Role:      profile.Role,
		SessionID: claims.ID,
	}
	if profile.StaffID != nil {
		actor.StaffID = *profile.StaffID
	}
	return actor, nil
}

func (a *AuthManager) Logout(ctx context.Context, actor domain.Actor) error {
	if actor.SessionID == "" {
		return nil
	}
	if err := a.sessions.Revoke(ctx, actor.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	log.Printf("[auth] logout user=%s", actor.Username)
	return nil
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !strings.HasPrefix(a.managerPIN, "$2") {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

func (a *AuthManager) parse(tokenStr string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

func (a *AuthManager) sign(username, role, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        sessionID,
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "storeledger",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
