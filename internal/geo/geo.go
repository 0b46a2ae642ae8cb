// Package geo resolves a client IP to a country when the edge did not supply
// geo headers. Lookups go to an external geolocation service and are cached
// in memory with a TTL; private and loopback addresses are never sent out.
package geo

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultEndpoint = "https://ipwho.is/"

// maxCacheEntries bounds the per-IP cache; inserts past the limit trigger an
// eviction sweep.
const maxCacheEntries = 10000

type cacheEntry struct {
	country string
	expires time.Time
}

// Resolver looks up country names by IP with an in-memory TTL cache
type Resolver struct {
	endpoint   string
	client     *http.Client
	ttl        time.Duration
	maxEntries int

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver with the given cache TTL
func NewResolver(ttl time.Duration) *Resolver {
	return &Resolver{
		endpoint:   defaultEndpoint,
		client:     &http.Client{Timeout: 2 * time.Second},
		ttl:        ttl,
		maxEntries: maxCacheEntries,
		cache:      make(map[string]cacheEntry),
	}
}

// NewResolverWithEndpoint creates a resolver against a custom lookup endpoint
func NewResolverWithEndpoint(endpoint string, ttl time.Duration) *Resolver {
	r := NewResolver(ttl)
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	r.endpoint = endpoint
	return r
}

// CountryForIP returns the country name for an IP, or "" when the IP is
// private, the lookup fails, or the service has no answer.
func (r *Resolver) CountryForIP(ctx context.Context, ip string) string {
	if ip == "" || isPrivateIP(ip) {
		return ""
	}

	now := time.Now()
	r.mu.Lock()
	if entry, ok := r.cache[ip]; ok && now.Before(entry.expires) {
		r.mu.Unlock()
		return entry.country
	}
	r.mu.Unlock()

	country := r.lookup(ctx, ip)

	r.mu.Lock()
	if len(r.cache) >= r.maxEntries {
		r.evictLocked(now)
	}
	r.cache[ip] = cacheEntry{country: country, expires: now.Add(r.ttl)}
	r.mu.Unlock()

	return country
}

// evictLocked drops expired entries; when nothing has expired yet, the whole
// cache is reset so the map stays bounded. Caller must hold r.mu.
func (r *Resolver) evictLocked(now time.Time) {
	for ip, entry := range r.cache {
		if !now.Before(entry.expires) {
			delete(r.cache, ip)
		}
	}
	if len(r.cache) >= r.maxEntries {
		r.cache = make(map[string]cacheEntry)
	}
}

func (r *Resolver) lookup(ctx context.Context, ip string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+ip, nil)
	if err != nil {
		return ""
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var out struct {
		Success bool   `json:"success"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ""
	}
	if !out.Success {
		return ""
	}
	return strings.TrimSpace(out.Country)
}

func isPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return true
	}
	return false
}
