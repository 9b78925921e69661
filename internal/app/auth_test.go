package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/storage/memory"
)

func newAuth(t *testing.T) (*app.AuthService, *fakeAuth) {
	t.Helper()
	fa := &fakeAuth{passwords: map[string]string{
		"owner@woodheaven.com": "s3cret",
		"guest@example.com":    "guest",
	}}
	svc := app.NewAuthService(fa, memory.New())
	require.NoError(t, svc.AddAdmin(context.Background(), "Owner@WoodHeaven.com", ""))
	return svc, fa
}

func TestSignIn_Admin(t *testing.T) {
	svc, fa := newAuth(t)
	sess, err := svc.SignIn(context.Background(), "owner@woodheaven.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "tok-owner@woodheaven.com", sess.AccessToken)
	assert.Empty(t, fa.signedOut)

	u, err := svc.Authorize(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "owner@woodheaven.com", u.Email)
}

func TestSignIn_NotAllowListed(t *testing.T) {
	svc, fa := newAuth(t)
	_, err := svc.SignIn(context.Background(), "guest@example.com", "guest")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, []string{"tok-guest@example.com"}, fa.signedOut, "non-admin session is revoked")

	_, err = svc.Authorize(context.Background(), "tok-guest@example.com")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSignIn_Failures(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "owner@woodheaven.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.SignIn(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	_, err = svc.Authorize(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Authorize(ctx, "forged")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.ErrorIs(t, svc.AddAdmin(ctx, "not-an-email", ""), domain.ErrBadRequest)
}

func TestIsAdmin_IgnoresStoredCase(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.Insert(ctx, domain.TableAdminUsers, []domain.Record{{"email": "Staff@WoodHeaven.com"}})
	require.NoError(t, err)

	fa := &fakeAuth{passwords: map[string]string{"staff@woodheaven.com": "pw"}}
	svc := app.NewAuthService(fa, store)

	ok, err := svc.IsAdmin(ctx, "staff@woodheaven.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.SignIn(ctx, "staff@woodheaven.com", "pw")
	require.NoError(t, err)
	assert.Empty(t, fa.signedOut)

	ok, err = svc.IsAdmin(ctx, "staff_@woodheaven.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
