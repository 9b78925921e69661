package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"woodheaven_farms/internal/domain"
)

// ---- fakes ----

// fakeCache stores JSON like the redis adapter does, so cached values come
// back as fresh copies.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	hits  int
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte // bucket/path
	types   map[string]string
	removed []string
	failOn  string // path substring that makes Upload fail
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && bytes.Contains(b, []byte(f.failOn)) {
		return fmt.Errorf("%w: storage rejected %s", domain.ErrUnavailable, path)
	}
	f.objects[bucket+"/"+path] = b
	f.types[bucket+"/"+path] = contentType
	return nil
}

func (f *fakeObjects) PublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

func (f *fakeObjects) Remove(ctx context.Context, bucket string, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.objects, bucket+"/"+p)
		f.removed = append(f.removed, bucket+"/"+p)
	}
	return nil
}

func (f *fakeObjects) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeAuth knows a fixed set of password logins. Tokens are "tok-<email>".
type fakeAuth struct {
	passwords map[string]string
	signedOut []string
}

func (a *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error) {
	if p, ok := a.passwords[email]; !ok || p != password {
		return domain.Session{}, fmt.Errorf("%w: invalid login credentials", domain.ErrUnauthorized)
	}
	return domain.Session{AccessToken: "tok-" + email, User: domain.User{ID: "u-" + email, Email: email}}, nil
}

func (a *fakeAuth) SignOut(ctx context.Context, token string) error {
	a.signedOut = append(a.signedOut, token)
	return nil
}

func (a *fakeAuth) GetUser(ctx context.Context, token string) (domain.User, error) {
	for email := range a.passwords {
		if token == "tok-"+email {
			return domain.User{ID: "u-" + email, Email: email}, nil
		}
	}
	return domain.User{}, domain.ErrUnauthorized
}

type fakeNotifier struct {
	mu     sync.Mutex
	stays  []domain.StayEnquiry
	events []domain.EventEnquiry
	fail   bool
}

func (n *fakeNotifier) NotifyStay(ctx context.Context, site domain.SiteSettings, e domain.StayEnquiry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stays = append(n.stays, e)
	if n.fail {
		return errors.New("mail down")
	}
	return nil
}

func (n *fakeNotifier) NotifyEvent(ctx context.Context, site domain.SiteSettings, e domain.EventEnquiry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	if n.fail {
		return errors.New("mail down")
	}
	return nil
}

// failingStore wraps a RecordStore and fails writes to one table.
type failingStore struct {
	domain.RecordStore
	table domain.Table
}

func (s failingStore) Insert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	if table == s.table {
		return nil, fmt.Errorf("%w: insert refused", domain.ErrUnavailable)
	}
	return s.RecordStore.Insert(ctx, table, rows)
}

// png is the smallest prefix http.DetectContentType recognises as image/png.
var png = []byte("\x89PNG\r\n\x1a\n0000")
