package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"woodheaven_farms/internal/domain"
)

// Auth is the GoTrue password flow.
type Auth struct{ c *Client }

func (c *Client) Auth() *Auth { return &Auth{c: c} }

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	ExpiresAt   int64       `json:"expires_at"`
	User        domain.User `json:"user"`
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error) {
	cl, err := a.c.jsonCall(http.MethodPost, "/auth/v1/token?grant_type=password", "auth:token",
		map[string]string{"email": email, "password": password})
	if err != nil {
		return domain.Session{}, err
	}
	// the password grant never needs more than the public key
	cl.token = a.c.anonKey

	var tr tokenResponse
	if err := a.c.do(ctx, cl, &tr); err != nil {
		if errors.Is(err, domain.ErrBadRequest) {
			return domain.Session{}, fmt.Errorf("%w: invalid login credentials", domain.ErrUnauthorized)
		}
		return domain.Session{}, err
	}
	if tr.AccessToken == "" {
		return domain.Session{}, fmt.Errorf("%w: empty access token", domain.ErrUnavailable)
	}

	exp := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	if tr.ExpiresAt > 0 {
		exp = time.Unix(tr.ExpiresAt, 0)
	}
	tr.User.Email = strings.ToLower(tr.User.Email)
	return domain.Session{AccessToken: tr.AccessToken, ExpiresAt: exp.UTC(), User: tr.User}, nil
}

// SignOut revokes the session. A token that is already invalid counts as
// signed out.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	err := a.c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/auth/v1/logout",
		token:    accessToken,
		endpoint: "auth:logout",
	}, nil)
	if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (a *Auth) GetUser(ctx context.Context, accessToken string) (domain.User, error) {
	if accessToken == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	var u domain.User
	err := a.c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/auth/v1/user",
		token:    accessToken,
		endpoint: "auth:user",
	}, &u)
	if errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Email = strings.ToLower(u.Email)
	return u, nil
}
