package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/domain"
)

// AuthService guards the admin surface: a valid session is not enough, its
// email must also be on the admin_users allow-list.
type AuthService struct {
	auth    domain.Authenticator
	records domain.RecordStore
}

func NewAuthService(a domain.Authenticator, r domain.RecordStore) *AuthService {
	return &AuthService{auth: a, records: r}
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Session{}, domain.Invalid("email", "email and password are required")
	}
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.requireAdmin(ctx, sess.AccessToken, sess.User.Email); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Authorize resolves an access token to an allow-listed admin.
func (s *AuthService) Authorize(ctx context.Context, token string) (domain.AdminUser, error) {
	if token == "" {
		return domain.AdminUser{}, fmt.Errorf("%w: no session", domain.ErrUnauthorized)
	}
	u, err := s.auth.GetUser(ctx, token)
	if err != nil {
		return domain.AdminUser{}, err
	}
	if err := s.requireAdmin(ctx, token, u.Email); err != nil {
		return domain.AdminUser{}, err
	}
	return domain.AdminUser{Email: strings.ToLower(u.Email)}, nil
}

func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.auth.SignOut(ctx, token)
}

// IsAdmin reports whether email is on the allow-list.
func (s *AuthService) IsAdmin(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	rows, err := s.records.Select(ctx, domain.TableAdminUsers, domain.Query{
		Filters: []domain.Filter{domain.EqFold("email", email)},
		Limit:   1,
	})
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return len(rows) > 0, nil
}

// AddAdmin puts email on the allow-list. passwordHash is only stored for
// the local authenticator and may be empty.
func (s *AuthService) AddAdmin(ctx context.Context, email, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Invalid("email", "must be an email address")
	}
	rec := domain.Record{"email": email}
	if passwordHash != "" {
		rec["password_hash"] = passwordHash
	}
	if _, err := s.records.Upsert(ctx, domain.TableAdminUsers, []domain.Record{rec}); err != nil {
		return fmt.Errorf("add admin %s: %w", email, err)
	}
	return nil
}

// requireAdmin signs the session out when its email is not allow-listed.
func (s *AuthService) requireAdmin(ctx context.Context, token, email string) error {
	ok, err := s.IsAdmin(ctx, email)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := s.auth.SignOut(context.WithoutCancel(ctx), token); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("sign out of non-admin failed")
	}
	return fmt.Errorf("%w: %s is not an admin", domain.ErrForbidden, email)
}
