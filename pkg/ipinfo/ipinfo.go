// Package ipinfo resolves a connecting device's public IP to a coarse
// location, cached indefinitely (until process restart) per spec.md
// Section 5's global IP-info cache requirement.
package ipinfo

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Info is the subset of the vendor lookup response the bridge cares about.
type Info struct {
	City string `json:"city"`
}

// Lookup resolves and caches IP info. Entries never expire on their own;
// the bounded LRU only evicts by capacity, matching the "indefinite until
// restart" requirement without leaking memory across a long-lived process.
type Lookup struct {
	cache  *lru.Cache[string, Info]
	client *http.Client
	url    string
}

// DefaultCapacity bounds the number of distinct IPs remembered at once.
const DefaultCapacity = 4096

// defaultLookupURL mirrors the vendor endpoint the original device bridge
// queries for IP-to-city resolution.
const defaultLookupURL = "https://whois.pconline.com.cn/ipJson.jsp?json=true&ip="

// New builds a Lookup with the given capacity (DefaultCapacity if <= 0).
func New(capacity int) (*Lookup, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, Info](capacity)
	if err != nil {
		return nil, err
	}
	return &Lookup{
		cache:  c,
		client: &http.Client{Timeout: 3 * time.Second},
		url:    defaultLookupURL,
	}, nil
}

// Resolve returns cached info for addr if present, otherwise queries the
// vendor endpoint and caches the result. Private/loopback addresses and
// lookup failures resolve to a zero-value Info rather than an error, since
// IP-info is best-effort connection-log context, never load-bearing.
func (l *Lookup) Resolve(ctx context.Context, addr string) Info {
	ip := hostOnly(addr)
	if info, ok := l.cache.Get(ip); ok {
		return info
	}
	if ip == "" || isPrivate(ip) {
		return Info{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url+ip, nil)
	if err != nil {
		return Info{}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Info{}
	}
	defer resp.Body.Close()

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Info{}
	}
	l.cache.Add(ip, info)
	return info
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isPrivate(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return true
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
}
