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

func TestSeed_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, app.Seed(ctx, store))
	require.NoError(t, app.Seed(ctx, store))

	for table, want := range map[domain.Table]int{
		domain.TableAmenityGroups: 6,
		domain.TableTestimonials:  3,
		domain.TableFAQs:          4,
		domain.TableSiteSettings:  1,
	} {
		rows, err := store.Select(ctx, table, domain.Query{})
		require.NoError(t, err)
		assert.Len(t, rows, want, table)
	}

	s, err := app.NewSiteService(store, newFakeObjects(), nil, 0).Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWhatsAppNumber, s.WhatsAppNumber)
}
