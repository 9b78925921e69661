package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/storage/memory"
)

func TestContent_SaveListDelete(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	svc := app.NewContentService(memory.New(), cache, time.Minute)

	a, err := svc.Save(ctx, domain.TableFAQs, domain.Record{"question": " Pets? ", "answer": "Yes", "bogus": 1})
	require.NoError(t, err)
	assert.Equal(t, "Pets?", a["question"])
	assert.NotContains(t, a, "bogus")

	_, err = svc.Save(ctx, domain.TableFAQs, domain.Record{"question": "Pool?", "answer": "Heated"})
	require.NoError(t, err)

	rows, err := svc.List(ctx, domain.TableFAQs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Pool?", rows[0]["question"], "newest first")

	// edit by id merges into the existing row
	_, err = svc.Save(ctx, domain.TableFAQs, domain.Record{"id": a["id"], "question": "Pets allowed?", "answer": "Yes"})
	require.NoError(t, err)
	assert.Contains(t, cache.dels, "content:faqs")

	rows, err = svc.List(ctx, domain.TableFAQs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Pets allowed?", rows[1]["question"])

	require.NoError(t, svc.Delete(ctx, domain.TableFAQs, domain.FormatValue(a["id"])))
	rows, err = svc.List(ctx, domain.TableFAQs)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestContent_Validation(t *testing.T) {
	ctx := context.Background()
	svc := app.NewContentService(memory.New(), nil, 0)

	cases := []struct {
		name  string
		table domain.Table
		rec   domain.Record
	}{
		{"missing required", domain.TableTestimonials, domain.Record{"name": "Aditi"}},
		{"blank required", domain.TableFAQs, domain.Record{"question": "  ", "answer": "x"}},
		{"non-numeric sort order", domain.TableHouseRules, domain.Record{"rule_text": "No smoking", "sort_order": "first"}},
		{"items not text", domain.TableAmenityGroups, domain.Record{"title": "Pool", "items": []any{1, 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(ctx, tc.table, tc.rec)
			assert.ErrorIs(t, err, domain.ErrBadRequest)
		})
	}

	_, err := svc.List(ctx, domain.TableAdminUsers)
	assert.ErrorIs(t, err, domain.ErrNotFound, "allow-list is not editorial content")
	assert.ErrorIs(t, svc.Delete(ctx, domain.TableFAQs, "abc"), domain.ErrBadRequest)
}

func TestContent_HouseRulesOrderAndItems(t *testing.T) {
	ctx := context.Background()
	svc := app.NewContentService(memory.New(), nil, 0)

	_, err := svc.Save(ctx, domain.TableHouseRules, domain.Record{"rule_text": "Quiet hours after 10 PM", "sort_order": float64(2)})
	require.NoError(t, err)
	r, err := svc.Save(ctx, domain.TableHouseRules, domain.Record{"rule_text": "No smoking indoors"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, r["sort_order"], "sort order defaults to 1")

	rows, err := svc.List(ctx, domain.TableHouseRules)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "No smoking indoors", rows[0]["rule_text"])

	g, err := svc.Save(ctx, domain.TableAmenityGroups, domain.Record{"title": "Outdoor", "items": "Pool\n\n Lawn \n"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Pool", "Lawn"}, g["items"])
}
