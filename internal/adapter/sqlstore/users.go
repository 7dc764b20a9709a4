package sqlstore

import (
	"context"
	"database/sql"

	"timecard/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, nullString(u.Email))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email FROM users WHERE username = ?`, username))
}

func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &email); err != nil {
		return domain.User{}, notFound(err)
	}
	u.Email = strPtr(email)
	return u, nil
}
