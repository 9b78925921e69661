// Package localauth signs staff in against password hashes kept in the
// admin_users table and issues HS256 access tokens. It stands in for the
// hosted auth service on self-hosted and mock deployments.
package localauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"woodheaven_farms/internal/domain"
)

const issuer = "woodheaven-farms"

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	users  domain.RecordStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

func New(users domain.RecordStore, secret string, ttl time.Duration) (*Authenticator, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("JWT secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}, nil
}

// HashPassword returns the bcrypt hash stored in admin_users.password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var errBadCredentials = fmt.Errorf("%w: invalid login credentials", domain.ErrUnauthorized)

func (a *Authenticator) SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	rows, err := a.users.Select(ctx, domain.TableAdminUsers, domain.Query{
		Filters: []domain.Filter{domain.EqFold("email", email)},
		Limit:   1,
	})
	if err != nil {
		return domain.Session{}, err
	}
	if len(rows) == 0 {
		return domain.Session{}, errBadCredentials
	}
	hash, _ := rows[0]["password_hash"].(string)
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return domain.Session{}, errBadCredentials
	}

	now := a.now()
	exp := now.Add(a.ttl)
	user := domain.User{ID: userID(email), Email: email}
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{AccessToken: tok, ExpiresAt: exp.UTC(), User: user}, nil
}

// SignOut revokes the token until it would have expired anyway. Tokens that
// do not parse are already unusable and are ignored.
func (a *Authenticator) SignOut(ctx context.Context, accessToken string) error {
	claims, err := a.parse(accessToken)
	if err != nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for id, exp := range a.revoked {
		if exp.Before(now) {
			delete(a.revoked, id)
		}
	}
	if claims.ExpiresAt != nil {
		a.revoked[claims.ID] = claims.ExpiresAt.Time
	}
	return nil
}

func (a *Authenticator) GetUser(ctx context.Context, accessToken string) (domain.User, error) {
	claims, err := a.parse(accessToken)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	a.mu.Lock()
	_, revoked := a.revoked[claims.ID]
	a.mu.Unlock()
	if revoked {
		return domain.User{}, fmt.Errorf("%w: session signed out", domain.ErrUnauthorized)
	}
	return domain.User{ID: claims.Subject, Email: claims.Email}, nil
}

func (a *Authenticator) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// userID derives a stable identifier from the email.
func userID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}
