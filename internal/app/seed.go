package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/domain"
)

var defaultAmenities = []domain.AmenityGroup{
	{Title: "Property Access", Items: []string{"Entire private farmhouse", "Gated entry", "Ample parking", "Caretaker on site"}},
	{Title: "Leisure & Outdoor", Items: []string{"Private swimming pool", "Landscaped lawn", "Bar garden", "Bonfire area", "Outdoor games"}},
	{Title: "Kitchen & Dining", Items: []string{"Fully equipped kitchen", "Outdoor dining area", "Barbecue grill", "Refrigerator", "Microwave"}},
	{Title: "Room Amenities", Items: []string{"Air conditioned bedrooms", "Fresh linen and towels", "Attached bathrooms", "Wi-Fi"}},
	{Title: "Event Support", Items: []string{"Decor friendly spaces", "Sound system permitted", "Power backup", "Vendor access"}},
	{Title: "Safety & Utilities", Items: []string{"CCTV at entrances", "First aid kit", "Fire extinguishers", "24x7 water supply"}},
}

var defaultTestimonials = []domain.Testimonial{
	{Name: "Aditi Sharma", Context: "Corporate Retreat", Text: "The perfect escape for our team. The lawns, the pool and the quiet made our offsite feel like a holiday."},
	{Name: "Vikram Mehta", Context: "Wedding Celebration", Text: "We hosted our haldi and mehendi here and every guest asked where we found this place. Warm hosts and a stunning setting."},
	{Name: "Sneha Kapoor", Context: "Family Weekend", Text: "Three generations under one roof and everyone was happy. The kids lived in the pool and the grown-ups in the garden."},
}

var defaultFAQs = []domain.FAQ{
	{Question: "How many guests can the farmhouse accommodate?", Answer: "Overnight stays suit up to 20 guests. Day events on the lawn can host larger gatherings; share your headcount and we will confirm."},
	{Question: "Can we bring external caterers?", Answer: "Yes. External caterers and decorators are welcome, and the kitchen and service areas are available to them."},
	{Question: "What are the check-in and check-out times?", Answer: "Check-in is from 1 PM and check-out is by 11 AM. Early arrival or late departure can be arranged when the calendar allows."},
	{Question: "Is the property private?", Answer: "Always. Every booking gets the entire farmhouse, so you never share the space with other groups."},
}

// Seed writes the default editorial content into empty tables. Tables that
// already hold rows are left alone, as is an existing settings row.
func Seed(ctx context.Context, records domain.RecordStore) error {
	if err := seedTable(ctx, records, domain.TableAmenityGroups, defaultAmenities); err != nil {
		return err
	}
	if err := seedTable(ctx, records, domain.TableTestimonials, defaultTestimonials); err != nil {
		return err
	}
	if err := seedTable(ctx, records, domain.TableFAQs, defaultFAQs); err != nil {
		return err
	}

	rows, err := records.Select(ctx, domain.TableSiteSettings, domain.Query{
		Filters: []domain.Filter{domain.Eq("id", domain.SettingsID)},
		Limit:   1,
	})
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if len(rows) == 0 {
		rec := domain.Record{
			"id":              domain.SettingsID,
			"brand_name":      "Wood Heaven Farms",
			"whatsapp_number": domain.DefaultWhatsAppNumber,
		}
		if _, err := records.Upsert(ctx, domain.TableSiteSettings, []domain.Record{rec}); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
		log.Info().Msg("seeded site settings")
	}
	return nil
}

func seedTable[T any](ctx context.Context, records domain.RecordStore, table domain.Table, items []T) error {
	existing, err := records.Select(ctx, table, domain.Query{Limit: 1})
	if err != nil {
		return fmt.Errorf("seed %s: %w", table, err)
	}
	if len(existing) > 0 {
		log.Info().Str("table", string(table)).Msg("table not empty; skipping seed")
		return nil
	}
	rows := make([]domain.Record, 0, len(items))
	for _, it := range items {
		rec, err := domain.ToRecord(it)
		if err != nil {
			return err
		}
		delete(rec, "id")
		rows = append(rows, rec)
	}
	if _, err := records.Insert(ctx, table, rows); err != nil {
		return fmt.Errorf("seed %s: %w", table, err)
	}
	log.Info().Str("table", string(table)).Int("rows", len(rows)).Msg("seeded")
	return nil
}
