// Package urlnorm canonicalizes user supplied URLs. Both yields the URL that
// is fetched together with the key records are stored and looked up under, so
// that URLs differing only in query string or fragment share one cache entry.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid is returned for URLs that cannot be normalized
var ErrInvalid = errors.New("invalid URL")

// DefaultScheme is prefixed to URLs given without one
const DefaultScheme = "https"

// CacheKey returns the dedup key for raw: scheme, host and path only.
func CacheKey(raw string) (string, error) {
	u, err := parse(raw)
	if err != nil {
		return "", err
	}
	return key(u), nil
}

// Both returns the fetchable URL and its cache key in one pass
func Both(raw string) (fetchURL, cacheKey string, err error) {
	u, err := parse(raw)
	if err != nil {
		return "", "", err
	}
	return u.String(), key(u), nil
}

func parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalid)
	}

	if !hasScheme(raw) {
		raw = DefaultScheme + "://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalid, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalid)
	}
	u.Host = strings.ToLower(u.Host)

	return u, nil
}

// hasScheme reports whether raw starts with a scheme separator. A "://" that
// only appears after the first '/', '?' or '#' belongs to the path, query or
// fragment.
func hasScheme(raw string) bool {
	i := strings.Index(raw, "://")
	if i < 0 {
		return false
	}
	return !strings.ContainsAny(raw[:i], "/?#")
}

func key(u *url.URL) string {
	k := url.URL{
		Scheme:  u.Scheme,
		Host:    u.Host,
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	return k.String()
}
