package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMemoryRepoConcurrentChargesNeverGoNegative(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if _, err := repo.Create(ctx, User{Email: "a@example.com", Credits: 3}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ChargeOne(ctx, "a@example.com")
			if err != nil {
				t.Errorf("ChargeOne: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 3 {
		t.Fatalf("expected exactly 3 successful charges, got %d", wins.Load())
	}
	balance, err := repo.Balance(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestMemoryRepoApplyPurchaseIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if _, err := repo.Create(ctx, User{Email: "a@example.com", Credits: 0}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.ApplyPurchase(ctx, "evt_1", "a@example.com", 10); err != nil {
			t.Fatalf("ApplyPurchase: %v", err)
		}
	}
	balance, _ := repo.Balance(ctx, "a@example.com")
	if balance != 10 {
		t.Fatalf("expected balance 10 after duplicate delivery, got %d", balance)
	}
}

func TestMemoryRepoUpdateCredentialsMovesAccount(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if _, err := repo.Create(ctx, User{Email: "a@example.com", PasswordHash: "h1", Credits: 2}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	user, err := repo.UpdateCredentials(ctx, "a@example.com", "b@example.com", "")
	if err != nil {
		t.Fatalf("UpdateCredentials: %v", err)
	}
	if user.Email != "b@example.com" || user.PasswordHash != "h1" || user.Credits != 2 {
		t.Fatalf("unexpected user after move: %+v", user)
	}
	if _, err := repo.GetByEmail(ctx, "a@example.com"); err != ErrNotFound {
		t.Fatalf("expected old email to be gone, got %v", err)
	}
}
