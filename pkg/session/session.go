// Package session holds the authenticated session material shared by the
// fetcher and the downloader. A Handle is built once by the caller and is
// never mutated afterwards.
package session

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	errs "yggharvest/pkg/errors"
)

// State is the outcome of probing a session against the tracker.
type State int

const (
	StateUnvalidated State = iota
	StateValid
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unvalidated"
	}
}

// Handle is an immutable cookie set bound to a tracker origin.
type Handle struct {
	cookies   map[string]string
	origin    url.URL
	expiresAt time.Time
}

// Option customises a Handle at construction time.
type Option func(*Handle)

// WithExpiry records a hint of when the session stops being accepted.
func WithExpiry(t time.Time) Option {
	return func(h *Handle) { h.expiresAt = t }
}

// New validates origin and cookies and returns a Handle. The cookie map is
// copied.
func New(origin string, cookies map[string]string, opts ...Option) (*Handle, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errs.New(errs.ErrorTypeInvalidInput, fmt.Sprintf("origin must be an absolute http(s) URL, got %q", origin), 0)
	}
	if len(cookies) == 0 {
		return nil, errs.New(errs.ErrorTypeInvalidInput, "session requires at least one cookie", 0)
	}

	h := &Handle{
		cookies: make(map[string]string, len(cookies)),
		origin:  url.URL{Scheme: u.Scheme, Host: u.Host},
	}
	for k, v := range cookies {
		if k == "" {
			continue
		}
		h.cookies[k] = v
	}
	if len(h.cookies) == 0 {
		return nil, errs.New(errs.ErrorTypeInvalidInput, "session requires at least one named cookie", 0)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// FromCookieString builds a Handle from a browser "name=value; ..." string.
func FromCookieString(origin, raw string, opts ...Option) (*Handle, error) {
	return New(origin, ParseCookieString(raw), opts...)
}

// ParseCookieString splits a Cookie header value into name/value pairs.
// Blank segments and segments without a name are skipped. The first '='
// separates name from value so values may contain '='.
func ParseCookieString(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// FormatCookieString renders cookies as a Cookie header value with names
// in sorted order. It is the inverse of ParseCookieString.
func FormatCookieString(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for k := range cookies {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + cookies[name]
	}
	return strings.Join(parts, "; ")
}

// Origin returns a copy of the tracker origin (scheme and host only).
func (h *Handle) Origin() *url.URL {
	u := h.origin
	return &u
}

// OriginString returns the origin as "scheme://host".
func (h *Handle) OriginString() string {
	return h.origin.String()
}

// Cookies returns a copy of the cookie map.
func (h *Handle) Cookies() map[string]string {
	out := make(map[string]string, len(h.cookies))
	for k, v := range h.cookies {
		out[k] = v
	}
	return out
}

// CookieNames returns the cookie names in sorted order, for logging.
func (h *Handle) CookieNames() []string {
	names := make([]string, 0, len(h.cookies))
	for k := range h.cookies {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ExpiresAt returns the expiry hint, if one was given.
func (h *Handle) ExpiresAt() (time.Time, bool) {
	return h.expiresAt, !h.expiresAt.IsZero()
}

// ExpiredAt reports whether the expiry hint lies before now. Without a hint
// the session is assumed live until a probe says otherwise.
func (h *Handle) ExpiredAt(now time.Time) bool {
	return !h.expiresAt.IsZero() && now.After(h.expiresAt)
}

// Apply attaches the session cookies to req in a stable order.
func (h *Handle) Apply(req *http.Request) {
	for _, name := range h.CookieNames() {
		req.AddCookie(&http.Cookie{Name: name, Value: h.cookies[name]})
	}
}

// Resolve turns ref into an absolute URL against the origin.
func (h *Handle) Resolve(ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return h.origin.ResolveReference(r).String(), nil
}
