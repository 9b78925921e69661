package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/domain"
)

const galleryKey = "gallery:images"

// GalleryListing is a (possibly filtered) gallery page with the category
// tabs built from every image.
type GalleryListing struct {
	Categories []string              `json:"categories"`
	Images     []domain.GalleryImage `json:"images"`
}

type GalleryService struct {
	records domain.RecordStore
	objects domain.ObjectStore
	cache   domain.Cache
	ttl     time.Duration
}

func NewGalleryService(r domain.RecordStore, o domain.ObjectStore, c domain.Cache, ttl time.Duration) *GalleryService {
	return &GalleryService{records: r, objects: o, cache: c, ttl: ttl}
}

func (s *GalleryService) List(ctx context.Context, category string) (GalleryListing, error) {
	all, err := readThrough(ctx, s.cache, s.ttl, galleryKey, s.load)
	if err != nil {
		return GalleryListing{}, err
	}
	out := GalleryListing{Categories: categories(all), Images: all}
	category = strings.TrimSpace(category)
	if category != "" && category != domain.CategoryAll {
		out.Images = make([]domain.GalleryImage, 0, len(all))
		for _, img := range all {
			if img.Category == category {
				out.Images = append(out.Images, img)
			}
		}
	}
	return out, nil
}

func (s *GalleryService) load(ctx context.Context) ([]domain.GalleryImage, error) {
	spec, err := domain.LookupTable(domain.TableGalleryImages)
	if err != nil {
		return nil, err
	}
	rows, err := s.records.Select(ctx, spec.Name, domain.Query{Order: spec.Order})
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	return domain.DecodeRecords[domain.GalleryImage](rows)
}

// Delete removes the row. The stored object goes too when it can.
func (s *GalleryService) Delete(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	match := []domain.Filter{domain.Eq("id", n)}
	rows, err := s.records.Select(ctx, domain.TableGalleryImages, domain.Query{Filters: match, Limit: 1})
	if err != nil {
		return fmt.Errorf("find image %d: %w", n, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: image %d", domain.ErrNotFound, n)
	}
	var img domain.GalleryImage
	if err := domain.FromRecord(rows[0], &img); err != nil {
		return err
	}

	if img.StoragePath != "" {
		if err := s.objects.Remove(ctx, domain.BucketGallery, img.StoragePath); err != nil {
			log.Warn().Err(err).Str("path", img.StoragePath).Msg("gallery object not removed")
		}
	}
	if err := s.records.Delete(ctx, domain.TableGalleryImages, match); err != nil {
		return fmt.Errorf("delete image %d: %w", n, err)
	}
	evict(ctx, s.cache, galleryKey)
	return nil
}

// categories is "All" followed by each category in order of first use.
func categories(imgs []domain.GalleryImage) []string {
	out := []string{domain.CategoryAll}
	seen := map[string]bool{}
	for _, img := range imgs {
		if img.Category == "" || seen[img.Category] {
			continue
		}
		seen[img.Category] = true
		out = append(out, img.Category)
	}
	return out
}
