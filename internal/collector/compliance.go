package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/promptatlas/promptatlas/pkg/logging"
)

// ComplianceGate checks robots.txt before a host is fetched. Entries are
// cached per host with a TTL so a batch run fetches each robots.txt once.
type ComplianceGate struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData // nil means unavailable, treat as allowed
	fetchedAt time.Time
}

// NewComplianceGate creates a new compliance gate
func NewComplianceGate(userAgent string) *ComplianceGate {
	return &ComplianceGate{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		ttl:       time.Hour,
		cache:     make(map[string]*robotsEntry),
	}
}

// Allowed reports whether targetURL may be fetched under the host's
// robots policy. Missing or unreadable robots.txt files allow the fetch.
func (cg *ComplianceGate) Allowed(ctx context.Context, targetURL string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	data := cg.robotsFor(ctx, parsed.Scheme, parsed.Host)
	if data == nil {
		return true
	}

	group := data.FindGroup(cg.userAgent)
	if group == nil {
		return true
	}

	return group.Test(parsed.Path)
}

func (cg *ComplianceGate) robotsFor(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	cg.mu.Lock()
	entry, ok := cg.cache[host]
	cg.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) < cg.ttl {
		return entry.data
	}

	data := cg.fetchRobots(ctx, scheme, host)

	cg.mu.Lock()
	cg.cache[host] = &robotsEntry{data: data, fetchedAt: time.Now()}
	cg.mu.Unlock()

	return data
}

func (cg *ComplianceGate) fetchRobots(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	logger := logging.GetLogger("compliance")

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", cg.userAgent)

	resp, err := cg.client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Str("host", host).Msg("robots.txt unreachable, allowing")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		logger.Debug().Err(err).Str("host", host).Msg("robots.txt unparseable, allowing")
		return nil
	}

	return data
}
