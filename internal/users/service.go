package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"resumegenie/internal/shared/telemetry"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrNothingToUpdate    = errors.New("no valid fields to update")
)

const minPasswordLen = 8

// EmailChangeListener is notified after an account moves to a new email so
// records keyed by email can follow it.
type EmailChangeListener interface {
	EmailChanged(ctx context.Context, from, to string) error
}

type Service struct {
	Repo     Repo
	Listener EmailChangeListener
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Signup creates an account with the default balance.
func (s *Service) Signup(ctx context.Context, email, password string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return User{}, ErrInvalidEmail
	}
	hash, err := s.hash(password)
	if err != nil {
		return User{}, err
	}
	user, err := s.Repo.Create(ctx, User{Email: email, PasswordHash: hash, Credits: DefaultCredits})
	if err != nil {
		return User{}, err
	}
	telemetry.Info("users.signup", map[string]any{"user_email": email})
	return user, nil
}

// Authenticate checks a password login. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	user, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if user.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByEmail(ctx, email)
}

// UpdateProfile changes the email and/or password of currentEmail.
func (s *Service) UpdateProfile(ctx context.Context, currentEmail, newEmail, newPassword string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	currentEmail = NormalizeEmail(currentEmail)
	target := NormalizeEmail(newEmail)
	if target == "" {
		target = currentEmail
	}
	emailChanged := target != currentEmail
	if !emailChanged && newPassword == "" {
		return User{}, ErrNothingToUpdate
	}
	if emailChanged && !validEmail(target) {
		return User{}, ErrInvalidEmail
	}

	var hash string
	if newPassword != "" {
		var err error
		if hash, err = s.hash(newPassword); err != nil {
			return User{}, err
		}
	}

	user, err := s.Repo.UpdateCredentials(ctx, currentEmail, target, hash)
	if err != nil {
		return User{}, err
	}

	if emailChanged {
		telemetry.Info("users.email_changed", map[string]any{"from": currentEmail, "to": target})
		if s.Listener != nil {
			if err := s.Listener.EmailChanged(ctx, currentEmail, target); err != nil {
				telemetry.Error("users.email_change_listener_failed", map[string]any{
					"from":  currentEmail,
					"to":    target,
					"error": err,
				})
			}
		}
	}
	return user, nil
}

// EnsureOAuthUser returns the account for an externally verified email,
// creating a password-less one when absent.
func (s *Service) EnsureOAuthUser(ctx context.Context, email string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return User{}, ErrInvalidEmail
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	user, err = s.Repo.Create(ctx, User{Email: email, Credits: DefaultCredits})
	if errors.Is(err, ErrEmailTaken) {
		return s.Repo.GetByEmail(ctx, email)
	}
	return user, err
}

func (s *Service) hash(password string) (string, error) {
	if len([]rune(password)) < minPasswordLen {
		return "", ErrWeakPassword
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
