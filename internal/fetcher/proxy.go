package fetcher

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync/atomic"
)

// ProxyPool rotates outbound HTTP proxies.
type ProxyPool struct {
	proxies  []*url.URL
	rotation string
	index    atomic.Int64
}

// NewProxyPool parses the proxy URLs. rotation is "round_robin" or "random".
func NewProxyPool(rawURLs []string, rotation string) (*ProxyPool, error) {
	pool := &ProxyPool{
		proxies:  make([]*url.URL, 0, len(rawURLs)),
		rotation: rotation,
	}
	for _, rawURL := range rawURLs {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", rawURL)
		}
		pool.proxies = append(pool.proxies, u)
	}
	return pool, nil
}

// ProxyFunc returns an http.Transport-compatible proxy function. With no
// proxies configured it defers to the environment.
func (p *ProxyPool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if p == nil || len(p.proxies) == 0 {
		return http.ProxyFromEnvironment
	}
	return func(*http.Request) (*url.URL, error) {
		return p.Next(), nil
	}
}

// Next returns the next proxy URL, or nil when the pool is empty.
func (p *ProxyPool) Next() *url.URL {
	if p == nil || len(p.proxies) == 0 {
		return nil
	}
	if p.rotation == "random" {
		return p.proxies[rand.IntN(len(p.proxies))]
	}
	idx := (p.index.Add(1) - 1) % int64(len(p.proxies))
	return p.proxies[idx]
}

// Len returns the number of proxies.
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}
