package domain

import (
	"context"
	"io"
)

// Record is one row as the backend represents it: column name to JSON value.
type Record map[string]any

type Filter struct {
	Column string
	Value  any
	// Fold compares text case-insensitively.
	Fold bool
}

func Eq(column string, v any) Filter { return Filter{Column: column, Value: v} }

// EqFold matches a text column ignoring case.
func EqFold(column, v string) Filter { return Filter{Column: column, Value: v, Fold: true} }

type Order struct {
	Column string
	Desc   bool
}

type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int // 0 = no limit
}

// RecordStore is the record API of the backend: equality filters, ordering
// and limits over named tables.
type RecordStore interface {
	Select(ctx context.Context, table Table, q Query) ([]Record, error)
	Insert(ctx context.Context, table Table, rows []Record) ([]Record, error)
	Update(ctx context.Context, table Table, match []Filter, patch Record) ([]Record, error)
	Upsert(ctx context.Context, table Table, rows []Record) ([]Record, error)
	Delete(ctx context.Context, table Table, match []Filter) error
}

// ObjectStore holds uploaded binaries in named buckets.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths ...string) error
}

type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (User, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// LeadNotifier tells staff about new enquiries.
type LeadNotifier interface {
	NotifyStay(ctx context.Context, site SiteSettings, e StayEnquiry) error
	NotifyEvent(ctx context.Context, site SiteSettings, e EventEnquiry) error
}
