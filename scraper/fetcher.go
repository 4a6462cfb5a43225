package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// Page kinds used for metrics and limiter selection.
const (
	kindArea = "area"
	kindPage = "page"
)

// Fetcher retrieves and parses pages from the origin site. Area pages and
// detail/probe pages draw from separate token buckets so image probing
// cannot starve the area crawl of its politeness budget.
type Fetcher struct {
	cfg       *config.Config
	base      *url.URL
	collector *colly.Collector
	metrics   *Metrics

	areaLimiter *rate.Limiter
	pageLimiter *rate.Limiter

	requests atomic.Int64
	retries  atomic.Int64
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: workers,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{
		cfg:         cfg,
		base:        parsed,
		collector:   collector,
		metrics:     metrics,
		areaLimiter: newLimiter(cfg.Delay),
		pageLimiter: newLimiter(cfg.PageDelay),
	}, nil
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// WithTransport replaces the HTTP transport used for every request.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// AreaURL returns the page URL for area.
func (f *Fetcher) AreaURL(area models.AreaSpec) string {
	return strings.TrimRight(f.cfg.BaseURL, "/") + "/" + string(area) + ".html"
}

// SiteURL resolves a path relative to the site root.
func (f *Fetcher) SiteURL(path string) string {
	return strings.TrimRight(f.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// FetchArea fetches and parses an area page. Timeouts, connection failures
// and rate limiting are retried up to MaxRetries times with capped
// exponential backoff. Any failure is returned as a *FetchError.
func (f *Fetcher) FetchArea(ctx context.Context, area models.AreaSpec) (*goquery.Document, error) {
	target := f.AreaURL(area)
	for attempt := 0; ; attempt++ {
		doc, err := f.fetch(ctx, kindArea, f.areaLimiter, target)
		if err == nil {
			return doc, nil
		}
		if !isTransient(err) || attempt >= f.cfg.MaxRetries || ctx.Err() != nil {
			return nil, &FetchError{Area: area, URL: target, Err: err}
		}

		delay := f.backoff(attempt + 1)
		f.retries.Add(1)
		f.metrics.IncRetries()
		slog.Warn("retrying area fetch",
			slog.String("area", string(area)),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &FetchError{Area: area, URL: target, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// FetchPage fetches and parses a detail or probe page once, without retries.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return f.fetch(ctx, kindPage, f.pageLimiter, pageURL)
}

// Requests reports how many requests were issued.
func (f *Fetcher) Requests() int {
	return int(f.requests.Load())
}

// Retries reports how many area retries were scheduled.
func (f *Fetcher) Retries() int {
	return int(f.retries.Load())
}

func (f *Fetcher) fetch(ctx context.Context, kind string, limiter *rate.Limiter, target string) (*goquery.Document, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var (
		body     []byte
		finalURL *url.URL
		status   int
		visitErr error
	)
	c := f.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
		finalURL = r.Request.URL
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		visitErr = err
	})

	f.requests.Add(1)
	f.metrics.IncRequest(kind)
	start := time.Now()
	err := c.Visit(target)
	f.metrics.ObserveDuration(kind, time.Since(start))
	if err == nil {
		err = visitErr
	}

	if err != nil || status >= http.StatusMultipleChoices {
		classified := classifyError(err, status)
		f.metrics.IncError(errorTypeLabel(classified))
		slog.Debug("request failed",
			slog.String("kind", kind),
			slog.String("url", target),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		return nil, classified
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		f.metrics.IncError("parse")
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	if finalURL == nil {
		finalURL, _ = url.Parse(target)
	}
	doc.Url = finalURL
	return doc, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
