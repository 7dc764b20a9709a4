package usecase

import (
	"context"
	"errors"
	"log/slog"

	"timecard/internal/auth"
	"timecard/internal/domain"
	"timecard/internal/ports"
)

const maxUsername = 80

// AuthUseCase registers users and issues tokens.
type AuthUseCase struct {
	Log    *slog.Logger
	Users  ports.UserStore
	Tokens *auth.Issuer
}

// Register creates an account. It fails with ErrConflict when the username
// is taken.
func (uc *AuthUseCase) Register(ctx context.Context, username, password string, email *string) (domain.User, error) {
	if username == "" || password == "" {
		return domain.User{}, &domain.ValidationError{Message: "Username and password are required"}
	}
	if len(username) > maxUsername {
		return domain.User{}, domain.Invalid("username", "must be at most 80 characters")
	}
	if len(password) > auth.MaxPasswordBytes {
		return domain.User{}, domain.Invalid("password", "must be at most 72 bytes")
	}
	if _, err := uc.Users.UserByUsername(ctx, username); err == nil {
		return domain.User{}, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{Username: username, PasswordHash: hash, Email: email}
	if err := uc.Users.CreateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	uc.Log.Info("user registered", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return u, nil
}

// Login checks credentials and returns a fresh token pair.
func (uc *AuthUseCase) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	u, err := uc.Users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return auth.TokenPair{}, domain.ErrUnauthorized
		}
		return auth.TokenPair{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return auth.TokenPair{}, domain.ErrUnauthorized
	}
	return uc.Tokens.Pair(u.ID)
}

// Refresh issues a new access token for an authenticated refresh token
// holder.
func (uc *AuthUseCase) Refresh(ctx context.Context, userID int64) (string, error) {
	if _, err := uc.Users.UserByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", err
	}
	return uc.Tokens.Issue(userID, auth.AccessToken)
}
