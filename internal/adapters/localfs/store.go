// Package localfs keeps uploaded objects on local disk, one directory per
// bucket, and serves them back over HTTP.
package localfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"woodheaven_farms/internal/domain"
)

type Store struct {
	dir        string
	publicBase string // URL prefix the Handler is mounted at
}

func New(dir, publicBase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// resolve maps bucket/path to a file under dir, refusing anything that would
// escape it.
func (s *Store) resolve(bucket, p string) (string, error) {
	clean := path.Clean("/" + bucket + "/" + p)
	if bucket == "" || strings.Contains(bucket, "/") || clean == "/"+bucket {
		return "", fmt.Errorf("%w: invalid object path %q", domain.ErrBadRequest, p)
	}
	if !strings.HasPrefix(clean, "/"+bucket+"/") {
		return "", fmt.Errorf("%w: invalid object path %q", domain.ErrBadRequest, p)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *Store) Upload(ctx context.Context, bucket, p, contentType string, body io.Reader) error {
	dst, err := s.resolve(bucket, p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: object %s/%s already exists", domain.ErrConflict, bucket, p)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *Store) PublicURL(bucket, p string) string {
	return s.publicBase + "/" + bucket + "/" + strings.TrimLeft(p, "/")
}

func (s *Store) Remove(ctx context.Context, bucket string, paths ...string) error {
	for _, p := range paths {
		f, err := s.resolve(bucket, p)
		if err != nil {
			return err
		}
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Handler serves stored objects. Mount it under publicBase with the prefix
// stripped.
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fs.ServeHTTP(w, r)
	})
}
