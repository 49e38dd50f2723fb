package users

import (
	"context"
	"sync"
	"time"

	"resumegenie/internal/credits"
)

var (
	_ Repo          = (*MemoryRepo)(nil)
	_ credits.Store = (*MemoryRepo)(nil)
)

// MemoryRepo keeps accounts and processed payment events in process memory.
type MemoryRepo struct {
	mu     sync.Mutex
	users  map[string]User
	events map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:  make(map[string]User),
		events: make(map[string]struct{}),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return User{}, ErrEmailTaken
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.Email] = user
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) UpdateCredentials(ctx context.Context, currentEmail, newEmail, passwordHash string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[currentEmail]
	if !ok {
		return User{}, ErrNotFound
	}
	if newEmail != currentEmail {
		if _, taken := r.users[newEmail]; taken {
			return User{}, ErrEmailTaken
		}
		delete(r.users, currentEmail)
		user.Email = newEmail
	}
	if passwordHash != "" {
		user.PasswordHash = passwordHash
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[user.Email] = user
	return user, nil
}

func (r *MemoryRepo) ChargeOne(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok || user.Credits < 1 {
		return false, nil
	}
	user.Credits--
	user.UpdatedAt = time.Now().UTC()
	r.users[email] = user
	return true, nil
}

func (r *MemoryRepo) RefundOne(ctx context.Context, email string) error {
	return r.TopUp(ctx, email, 1)
}

func (r *MemoryRepo) TopUp(ctx context.Context, email string, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(email, amount)
}

func (r *MemoryRepo) ApplyPurchase(ctx context.Context, eventID, email string, amount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.events[eventID]; seen {
		return false, nil
	}
	if err := r.addLocked(email, amount); err != nil {
		return false, err
	}
	r.events[eventID] = struct{}{}
	return true, nil
}

func (r *MemoryRepo) Balance(ctx context.Context, email string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok {
		return 0, credits.ErrUserNotFound
	}
	return user.Credits, nil
}

func (r *MemoryRepo) addLocked(email string, amount int) error {
	user, ok := r.users[email]
	if !ok {
		return credits.ErrUserNotFound
	}
	user.Credits += amount
	user.UpdatedAt = time.Now().UTC()
	r.users[email] = user
	return nil
}
