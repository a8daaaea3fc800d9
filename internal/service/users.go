package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

const minPasswordLength = 6

type UserDirectory struct {
	repo store.Repository
}

func NewUserDirectory(repo store.Repository) *UserDirectory {
	return &UserDirectory{repo: repo}
}

func (d *UserDirectory) GetUser(ctx context.Context, username string) (domain.UserProfile, error) {
	username = strings.TrimSpace(username)
	profile, err := d.repo.GetUser(ctx, username)
	if err != nil {
		return domain.UserProfile{}, notFound(err, "user", username)
	}
	return *profile, nil
}

// RegisterUser creates an account linked to an existing staff member. The
// role defaults to "user".
func (d *UserDirectory) RegisterUser(ctx context.Context, username string, password string, staffID string, role string) (domain.UserProfile, error) {
	trim(&username, &staffID, &role)
	if role == "" {
		role = domain.RoleUser
	}
	switch {
	case username == "":
		return domain.UserProfile{}, invalid("username is required")
	case strings.ContainsAny(username, " \t\r\n"):
		return domain.UserProfile{}, invalid("username must not contain spaces")
	case strings.TrimSpace(password) == "":
		return domain.UserProfile{}, invalid("password is required")
	case len(password) < minPasswordLength:
		return domain.UserProfile{}, invalid("password must be at least %d characters", minPasswordLength)
	case staffID == "":
		return domain.UserProfile{}, invalid("staff_id is required")
	case role != domain.RoleAdmin && role != domain.RoleUser:
		return domain.UserProfile{}, invalid("role must be %q or %q", domain.RoleAdmin, domain.RoleUser)
	}

	if _, err := d.repo.GetStaff(ctx, staffID); err != nil {
		return domain.UserProfile{}, notFound(err, "staff", staffID)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}
	err = d.repo.CreateUser(ctx, domain.User{
		Username: username,
		Password: hash,
		StaffID:  &staffID,
		Role:     role,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return domain.UserProfile{}, fmt.Errorf("%w: username %s already exists", store.ErrDuplicateKey, username)
		}
		return domain.UserProfile{}, err
	}

	log.Printf("[users] user registered username=%s staff=%s role=%s", username, staffID, role)
	return d.GetUser(ctx, username)
}

// Authenticate checks a username and password. Passwords stored in plain text
// by older versions are accepted once and replaced with a bcrypt hash.
func (d *UserDirectory) Authenticate(ctx context.Context, username string, password string) (domain.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return domain.UserProfile{}, ErrInvalidCredentials
	}

	profile, err := d.repo.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserProfile{}, ErrInvalidCredentials
		}
		return domain.UserProfile{}, err
	}

	if isPasswordHash(profile.Password) {
		if !verifyPassword(profile.Password, password) {
			return domain.UserProfile{}, ErrInvalidCredentials
		}
		return *profile, nil
	}

	if subtle.ConstantTimeCompare([]byte(profile.Password), []byte(password)) != 1 {
		return domain.UserProfile{}, ErrInvalidCredentials
	}
	hashed, err := hashPassword(password)
	if err == nil {
		if err := d.repo.UpdateUserPassword(ctx, username, hashed); err != nil {
			log.Printf("[users] WARN: failed to upgrade legacy password username=%s: %v", username, err)
		} else {
			profile.Password = hashed
			log.Printf("[users] upgraded legacy password username=%s", username)
		}
	}
	return *profile, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
