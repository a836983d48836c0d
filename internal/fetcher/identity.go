package fetcher

import (
	"math/rand/v2"
	"net/http"
	"strings"
)

// IdentityPool holds the browser-like header sets a request may present.
// Each fetch attempt picks one at random.
type IdentityPool struct {
	sets []http.Header
}

// NewIdentityPool builds one header set per user agent.
func NewIdentityPool(userAgents []string) *IdentityPool {
	pool := &IdentityPool{}
	for _, ua := range userAgents {
		pool.sets = append(pool.sets, identityFor(ua))
	}
	return pool
}

// Pick returns a copy of a randomly chosen header set.
func (p *IdentityPool) Pick() http.Header {
	if len(p.sets) == 0 {
		return identityFor("NewsHarvest")
	}
	return p.sets[rand.IntN(len(p.sets))].Clone()
}

// Len returns the number of header sets.
func (p *IdentityPool) Len() int {
	return len(p.sets)
}

func identityFor(ua string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", ua)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")

	// Client hints are only sent by Chromium-based browsers.
	switch {
	case strings.Contains(ua, "Edg/"):
		h.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Microsoft Edge";v="120"`)
	case strings.Contains(ua, "Chrome/"):
		h.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	default:
		return h
	}
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"`+platformOf(ua)+`"`)
	return h
}

func platformOf(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Windows"
	}
}
