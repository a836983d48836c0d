package engine

import (
	"net/url"
	"path"
	"strings"
	"sync"
)

// trackingParams never change which article a link points at.
var trackingParams = map[string]bool{
	"spm":         true,
	"from":        true,
	"wfr":         true,
	"share_token": true,
	"scene":       true,
}

// volatileParams are per-host query keys regenerated on every result page.
// Sogou's WeChat redirect links carry fresh k/h tokens per search.
var volatileParams = map[string][]string{
	"weixin.sogou.com": {"k", "h"},
}

// directoryIndexes are served at their directory URL too.
var directoryIndexes = []string{"index.html", "index.htm", "index.shtml"}

// Ledger is the run-wide set of candidate URLs already claimed. A URL is
// claimed before it is fetched, so a second sighting is rejected even if
// the first fetch later fails.
type Ledger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewLedger creates a Ledger with the given estimated capacity.
func NewLedger(estimatedCapacity int) *Ledger {
	return &Ledger{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// Add claims the URL and reports whether it was new.
func (l *Ledger) Add(rawURL string) bool {
	key := LedgerKey(rawURL)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}

// Len returns the number of claimed URLs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// LedgerKey reduces a URL to the part that identifies an article: host
// (lowercased, without default port), path and the meaningful query.
// The scheme is dropped since portals serve the same page over http and
// https. Unparsable input is its own key.
func LedgerKey(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	p := u.EscapedPath()
	for _, index := range directoryIndexes {
		if path.Base(p) == index {
			p = strings.TrimSuffix(p, index)
			break
		}
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		p = "/"
	}

	key := host + p
	if q := meaningfulQuery(u.Query(), host); q != "" {
		key += "?" + q
	}
	return key
}

// meaningfulQuery drops tracking and per-host volatile keys and encodes the
// rest sorted by key.
func meaningfulQuery(q url.Values, host string) string {
	for k := range q {
		if trackingParams[strings.ToLower(k)] || strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}
	for _, k := range volatileParams[host] {
		q.Del(k)
	}
	return q.Encode()
}
