package platform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/platform"
	"woodheaven_farms/internal/shared"
)

func TestOpen_MemorySeedsDevAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := shared.Config{
		AppEnv:                "dev",
		Backend:               shared.BackendMemory,
		UploadDir:             t.TempDir(),
		UploadPublicURLPrefix: "/uploads",
		UploadConcurrency:     1,
		UploadMaxBytes:        1 << 20,
		DevAdminEmail:         "admin@woodheaven.com",
		DevAdminPassword:      "admin123",
	}
	b, err := platform.Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Cache)
	assert.Nil(t, b.Notifier)
	assert.NotNil(t, b.Files)

	sess, err := b.Auth.SignInWithPassword(ctx, "admin@woodheaven.com", "admin123")
	require.NoError(t, err)
	u, err := b.Auth.GetUser(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@woodheaven.com", u.Email)

	rows, err := b.Records.Select(ctx, domain.TableFAQs, domain.Query{})
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestOpen_RefusesMemoryInProd(t *testing.T) {
	_, err := platform.Open(context.Background(), shared.Config{
		AppEnv: "prod", Backend: shared.BackendMemory, UploadConcurrency: 1, UploadMaxBytes: 1,
	})
	assert.Error(t, err)
}
