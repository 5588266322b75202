package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func CreateUser(ctx context.Context, db *sql.DB, email, passwordHash string) (User, error) {
	u := User{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO users(email, password_hash, created_at)
VALUES(?,?,?)
ON CONFLICT(email) DO NOTHING;`,
		u.Email, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return User{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return User{}, ErrDuplicate
	}
	u.ID, _ = res.LastInsertId()
	return u, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (User, error) {
	var u User
	var created string
	err := db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users WHERE email = ? LIMIT 1;`, NormalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return u, nil
}
