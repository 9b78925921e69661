package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"woodheaven_farms/internal/domain"
)

const settingsKey = "site:settings"

type SiteService struct {
	records domain.RecordStore
	objects domain.ObjectStore
	cache   domain.Cache
	ttl     time.Duration
	now     func() time.Time
}

func NewSiteService(r domain.RecordStore, o domain.ObjectStore, c domain.Cache, ttl time.Duration) *SiteService {
	return &SiteService{records: r, objects: o, cache: c, ttl: ttl, now: time.Now}
}

// Settings returns the settings row. Before staff first save, that is a
// zero record with id 1.
func (s *SiteService) Settings(ctx context.Context) (domain.SiteSettings, error) {
	return readThrough(ctx, s.cache, s.ttl, settingsKey, s.load)
}

func (s *SiteService) load(ctx context.Context) (domain.SiteSettings, error) {
	rows, err := s.records.Select(ctx, domain.TableSiteSettings, domain.Query{
		Filters: []domain.Filter{domain.Eq("id", domain.SettingsID)},
		Limit:   1,
	})
	if err != nil {
		return domain.SiteSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if len(rows) == 0 {
		return domain.SiteSettings{ID: domain.SettingsID}, nil
	}
	var out domain.SiteSettings
	if err := domain.FromRecord(rows[0], &out); err != nil {
		return domain.SiteSettings{}, err
	}
	return out, nil
}

func (s *SiteService) SaveSettings(ctx context.Context, in domain.SiteSettings) (domain.SiteSettings, error) {
	in.ID = domain.SettingsID
	now := s.now().UTC()
	in.UpdatedAt = &now

	rec, err := domain.ToRecord(in)
	if err != nil {
		return domain.SiteSettings{}, err
	}
	rows, err := s.records.Upsert(ctx, domain.TableSiteSettings, []domain.Record{rec})
	if err != nil {
		return domain.SiteSettings{}, fmt.Errorf("save settings: %w", err)
	}
	evict(ctx, s.cache, settingsKey)

	out := in
	if len(rows) > 0 {
		if err := domain.FromRecord(rows[0], &out); err != nil {
			return domain.SiteSettings{}, err
		}
	}
	return out, nil
}

// UploadAsset stores a branding image and points the settings field at it.
func (s *SiteService) UploadAsset(ctx context.Context, field, filename, contentType string, body io.Reader) (string, error) {
	f, ok := domain.ParseAssetField(field)
	if !ok {
		return "", domain.Invalid("field", "must be one of logo_url, hero_image_url, section2_image_url")
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	ct, ok := imageType(filename, contentType, head)
	if !ok {
		return "", domain.Invalid("file", "must be an image")
	}

	path := fmt.Sprintf("branding/%s-%d.%s", f, s.now().UnixMilli(), extension(ct))
	if err := s.objects.Upload(ctx, domain.BucketBranding, path, ct, io.MultiReader(bytes.NewReader(head), body)); err != nil {
		return "", fmt.Errorf("upload %s: %w", f, err)
	}
	url := s.objects.PublicURL(domain.BucketBranding, path)

	settings, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	settings.Set(f, url)
	if _, err := s.SaveSettings(ctx, settings); err != nil {
		return "", err
	}
	return url, nil
}

// WhatsAppNumber is the number guests are sent to.
func WhatsAppNumber(s domain.SiteSettings) string { return s.WhatsApp() }
