package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/promptatlas/promptatlas/pkg/guide"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

// FetcherConfig configures fetch behavior
type FetcherConfig struct {
	UserAgent       string
	Referer         string
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	MaxRedirects    int
	RequestsPerHost float64 // sustained requests per second per host
}

// DefaultFetcherConfig returns default fetcher configuration
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Referer:         "https://www.google.com/",
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		BackoffBase:     time.Second,
		MaxRedirects:    10,
		RequestsPerHost: 0.5,
	}
}

// Fetcher performs HTTP fetches with a retry policy tuned to the failure
// class: exponential backoff for bot blocks, linear for transient network
// errors, no retry for permanent failures.
type Fetcher struct {
	config     *FetcherConfig
	client     *http.Client
	extractor  *Extractor
	compliance *ComplianceGate // nil disables the robots gate

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a new fetcher
func NewFetcher(config *FetcherConfig, extractor *Extractor, compliance *ComplianceGate) *Fetcher {
	if config == nil {
		config = DefaultFetcherConfig()
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBase == 0 {
		config.BackoffBase = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRedirects == 0 {
		config.MaxRedirects = 10
	}
	if extractor == nil {
		extractor = NewExtractor(nil)
	}

	maxRedirects := config.MaxRedirects
	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		config:     config,
		client:     client,
		extractor:  extractor,
		compliance: compliance,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Fetch fetches and extracts one URL. Exhausted retries yield a structured
// failure result, never an error: the caller moves on to the next source.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) guide.FetchResult {
	logger := logging.GetLogger("fetcher")

	if f.compliance != nil && !f.compliance.Allowed(ctx, targetURL) {
		logger.Info().Str("url", targetURL).Msg("Blocked by robots.txt")
		return guide.FetchResult{
			Source:  targetURL,
			Failure: guide.FailurePermanent,
			Error:   "disallowed by robots.txt",
		}
	}

	var last guide.FetchResult
	for attempt := 1; attempt <= f.config.MaxRetries; attempt++ {
		if err := f.waitForHost(ctx, targetURL); err != nil {
			return guide.FetchResult{
				Source:  targetURL,
				Failure: guide.FailureTransient,
				Error:   err.Error(),
			}
		}

		last = f.fetchOnce(ctx, targetURL)
		if last.Success || last.Failure == guide.FailurePermanent {
			return last
		}

		if attempt == f.config.MaxRetries {
			break
		}

		delay := f.backoffDelay(last.Failure, attempt)
		logger.Warn().
			Str("url", targetURL).
			Str("failure", last.Failure.String()).
			Int("status_code", last.StatusCode).
			Int("attempts_remaining", f.config.MaxRetries-attempt).
			Dur("backoff", delay).
			Msg("Fetch failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			last.Error = ctx.Err().Error()
			return last
		}
	}

	logger.Warn().
		Str("url", targetURL).
		Str("failure", last.Failure.String()).
		Msg("Fetch retries exhausted")

	return last
}

// backoffDelay computes the delay before the next attempt: exponential
// (base*2^attempt) for bot blocks, linear (attempt*base) for transient
// network failures.
func (f *Fetcher) backoffDelay(class guide.FailureClass, attempt int) time.Duration {
	if class == guide.FailureBotBlocked {
		return f.config.BackoffBase * time.Duration(1<<attempt)
	}
	return f.config.BackoffBase * time.Duration(attempt)
}

// fetchOnce performs a single GET and classifies the outcome.
func (f *Fetcher) fetchOnce(ctx context.Context, targetURL string) guide.FetchResult {
	result := guide.FetchResult{Source: targetURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		result.Failure = guide.FailurePermanent
		result.Error = err.Error()
		return result
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Referer", f.config.Referer)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		// Transport errors (timeout, connection reset, DNS) are retryable.
		result.Failure = guide.FailureTransient
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Failure = classifyStatus(resp.StatusCode, resp.Status)
	if result.Failure != guide.FailureNone {
		result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return result
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		result.Failure = guide.FailurePermanent
		result.Error = fmt.Sprintf("parsing HTML: %v", err)
		return result
	}

	content := f.extractor.Extract(doc)
	result.Success = true
	result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	result.Description = metaDescription(doc)
	result.Content = &content

	return result
}

// classifyStatus maps an HTTP status onto a failure class. The class is
// decided here, once, so nothing upstream matches on status strings.
func classifyStatus(code int, status string) guide.FailureClass {
	switch {
	case code >= 200 && code < 300:
		return guide.FailureNone
	case code == http.StatusForbidden || strings.Contains(status, "Forbidden"):
		return guide.FailureBotBlocked
	default:
		// 404, 410, and anything else not worth retrying.
		return guide.FailurePermanent
	}
}

func metaDescription(doc *goquery.Document) string {
	desc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	if desc == "" {
		desc, _ = doc.Find(`meta[property="og:description"]`).First().Attr("content")
	}
	return strings.TrimSpace(desc)
}

// waitForHost applies the per-host rate limit before an attempt.
func (f *Fetcher) waitForHost(ctx context.Context, targetURL string) error {
	if f.config.RequestsPerHost <= 0 {
		return nil
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil // classification happens in fetchOnce
	}

	f.mu.Lock()
	limiter, ok := f.limiters[parsed.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.config.RequestsPerHost), 1)
		f.limiters[parsed.Host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}
