package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"resumegenie/internal/credits"
)

var (
	_ Repo          = (*PGRepo)(nil)
	_ credits.Store = (*PGRepo)(nil)
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (email, password_hash, credits, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, user.Email, user.PasswordHash, user.Credits).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `
SELECT email, password_hash, credits, created_at, updated_at
FROM users
WHERE email = $1
LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *PGRepo) UpdateCredentials(ctx context.Context, currentEmail, newEmail, passwordHash string) (User, error) {
	const query = `
UPDATE users
SET email = $2,
    password_hash = COALESCE(NULLIF($3, ''), password_hash),
    updated_at = now()
WHERE email = $1
RETURNING email, password_hash, credits, created_at, updated_at`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, currentEmail, newEmail, passwordHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

// ChargeOne is a single guarded decrement; concurrent callers can never drive
// the balance below zero.
func (r *PGRepo) ChargeOne(ctx context.Context, email string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
UPDATE users SET credits = credits - 1, updated_at = now()
WHERE email = $1 AND credits >= 1`, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepo) RefundOne(ctx context.Context, email string) error {
	return r.TopUp(ctx, email, 1)
}

func (r *PGRepo) TopUp(ctx context.Context, email string, amount int) error {
	return addCredits(ctx, r.DB, email, amount)
}

func (r *PGRepo) ApplyPurchase(ctx context.Context, eventID, email string, amount int) (applied bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !applied {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO payment_events (event_id, email, credits, processed_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (event_id) DO NOTHING`, eventID, email, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if err = addCredits(ctx, tx, email, amount); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PGRepo) Balance(ctx context.Context, email string) (int, error) {
	var balance int
	err := r.DB.QueryRowContext(ctx, `SELECT credits FROM users WHERE email = $1`, email).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, credits.ErrUserNotFound
	}
	return balance, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addCredits(ctx context.Context, db execer, email string, amount int) error {
	res, err := db.ExecContext(ctx, `
UPDATE users SET credits = credits + $2, updated_at = now()
WHERE email = $1`, email, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credits.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.Email, &user.PasswordHash, &user.Credits, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
