package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Storage is the object API. Buckets are expected to be public.
type Storage struct{ c *Client }

func (c *Client) Storage() *Storage { return &Storage{c: c} }

func (s *Storage) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(path),
		body:        b,
		contentType: contentType,
		header: http.Header{
			"Cache-Control": {"max-age=3600"},
			"X-Upsert":      {"false"},
		},
		endpoint: "storage:" + bucket,
	}, nil)
}

func (s *Storage) PublicURL(bucket, path string) string {
	return s.c.base + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	cl, err := s.c.jsonCall(http.MethodDelete, "/storage/v1/object/"+url.PathEscape(bucket),
		"storage:"+bucket, map[string][]string{"prefixes": paths})
	if err != nil {
		return err
	}
	return s.c.do(ctx, cl, nil)
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
