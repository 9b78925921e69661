// Package supabase talks to a Supabase-compatible backend: PostgREST for
// records, Storage for objects and GoTrue for auth.
package supabase

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"woodheaven_farms/internal/adapters/observability"
	"woodheaven_farms/internal/domain"
)

const maxAttempts = 4

type Client struct {
	base       string
	anonKey    string
	serviceKey string
	hc         *http.Client
	rl         *rate.Limiter
}

// New builds a client for the project at base. serviceKey may be empty, in
// which case record and storage calls run with the anon key and are subject
// to row level security.
func New(base, anonKey, serviceKey string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if anonKey == "" {
		return nil, fmt.Errorf("supabase anon key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base:       strings.TrimRight(base, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		hc:         &http.Client{Timeout: 30 * time.Second},
		rl:         rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// call describes one request. body is kept as bytes so every attempt can
// send it again.
type call struct {
	method      string
	path        string // relative to base, query included
	body        []byte
	contentType string
	token       string // bearer; empty means the project key
	header      http.Header
	endpoint    string // metrics label
}

// apiError covers the error bodies of PostgREST, Storage and GoTrue.
type apiError struct {
	Code        any    `json:"code"`
	Message     string `json:"message"`
	Msg         string `json:"msg"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Details     string `json:"details"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.Description, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) key() string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

func (c *Client) jsonCall(method, path, endpoint string, in any) (call, error) {
	cl := call{method: method, path: path, endpoint: endpoint}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return cl, err
		}
		cl.body = b
		cl.contentType = "application/json"
	}
	return cl, nil
}

// do performs the call with client-side rate limiting and retries, decoding
// a JSON response into out when out is non-nil. 429 is always retried;
// transient 5xx and network errors only for idempotent methods.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	idempotent := cl.method != http.MethodPost && cl.method != http.MethodPatch

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		var body io.Reader
		if cl.body != nil {
			body = bytes.NewReader(cl.body)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, c.base+cl.path, body)
		if err != nil {
			return err
		}
		token := cl.token
		if token == "" {
			token = c.key()
		}
		req.Header.Set("apikey", c.key())
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "woodheaven-farms/1.0")
		if cl.contentType != "" {
			req.Header.Set("Content-Type", cl.contentType)
		}
		for k, vs := range cl.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("supabase", cl.endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
			if idempotent && i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("supabase", cl.endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var err error
			if out != nil {
				err = json.NewDecoder(resp.Body).Decode(out)
				if errors.Is(err, io.EOF) {
					err = nil
				}
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode %s: %w", cl.endpoint, err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests ||
			(idempotent && resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented):
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%w: remote %d", domain.ErrUnavailable, resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			err := statusErr(resp)
			resp.Body.Close()
			return err
		}
	}
	return lastErr
}

// statusErr maps a failed response onto the domain sentinels.
func statusErr(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	_ = json.Unmarshal(b, &ae)
	msg := ae.text()
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}

	var base error
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		base = domain.ErrBadRequest
	case http.StatusUnauthorized:
		base = domain.ErrUnauthorized
	case http.StatusForbidden:
		base = domain.ErrForbidden
	case http.StatusNotFound:
		base = domain.ErrNotFound
	case http.StatusConflict:
		base = domain.ErrConflict
	default:
		if resp.StatusCode >= 500 {
			base = domain.ErrUnavailable
		} else {
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
		}
	}
	if msg == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... for attempt i, plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
