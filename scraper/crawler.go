// Package scraper fetches area pages, extracts and resolves listings and
// hands them to persistence and export.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/extract"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/storage"
)

// Crawler runs one crawl over the configured areas.
type Crawler struct {
	cfg       *config.Config
	fetcher   *Fetcher
	extractor *extract.Extractor
	resolver  *ImageResolver
	sink      storage.Sink
	Metrics   *Metrics
}

// NewCrawler validates cfg and wires the crawl components. A nil sink keeps
// listings in memory; a nil pageCache gets an in-process LRU.
func NewCrawler(cfg *config.Config, sink storage.Sink, pageCache cache.PageCache) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	profile := cfg.Profile
	if profile == nil {
		profile = config.DefaultProfile()
	}

	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = storage.NewMemorySink()
	}
	if pageCache == nil {
		size := cfg.PageCacheSize
		if size <= 0 {
			size = 1024
		}
		if pageCache, err = cache.NewLRU(size); err != nil {
			return nil, err
		}
	}

	return &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extract.NewExtractor(profile),
		resolver:  NewImageResolver(fetcher, fetcher.SiteURL, profile, pageCache, metrics),
		sink:      sink,
		Metrics:   metrics,
	}, nil
}

// Fetcher exposes the fetcher, mainly to swap its transport.
func (c *Crawler) Fetcher() *Fetcher {
	return c.fetcher
}

type areaResult struct {
	area     models.AreaSpec
	listings []*models.ResolvedListing
	err      error
}

// run holds the mutable state of one Run call.
type run struct {
	deduper *extract.Deduper
	p       *pipeline.Pipeline

	mu           sync.Mutex
	stats        models.RunStatistics
	errorsByType map[string]int
}

// Run crawls every area with a bounded worker pool, streams listings to p
// when it is not nil, and saves them to the sink. A failed area is recorded
// and skipped. Cancelling ctx stops scheduling new areas; the partial result
// is returned with the context error and nothing is saved.
func (c *Crawler) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	r := &run{
		deduper:      extract.NewDeduper(),
		p:            p,
		errorsByType: make(map[string]int),
	}

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	results := make([]areaResult, len(c.cfg.Areas))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, raw := range c.cfg.Areas {
		if ctx.Err() != nil {
			break
		}
		i := i
		area := models.AreaSpec(raw)
		g.Go(func() error {
			results[i] = c.crawlArea(ctx, r, area)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.CrawlResult{StartTime: start}
	for _, res := range results {
		if res.err != nil {
			result.FailedAreas = append(result.FailedAreas, res.area)
		}
		result.Listings = append(result.Listings, res.listings...)
	}

	if err := ctx.Err(); err != nil {
		c.finish(result, r)
		return result, err
	}

	c.save(ctx, r, result.Listings)
	c.finish(result, r)

	slog.Info("crawl finished",
		slog.Int("areas", len(c.cfg.Areas)),
		slog.Int("areas_failed", result.Stats.AreasFailed),
		slog.Int("listings", len(result.Listings)),
		slog.Int("saved", result.Stats.Saved),
		slog.Int("skipped", result.Stats.Skipped),
		slog.Int("errors", result.Stats.Errors),
		slog.Duration("elapsed", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

func (c *Crawler) finish(result *models.CrawlResult, r *run) {
	r.mu.Lock()
	result.Stats = r.stats
	result.ErrorsByType = make(map[string]int, len(r.errorsByType))
	for k, v := range r.errorsByType {
		result.ErrorsByType[k] = v
	}
	r.mu.Unlock()

	result.EndTime = time.Now()
	result.RequestCount = c.fetcher.Requests()
	result.RetryCount = c.fetcher.Retries()
}

func (c *Crawler) crawlArea(ctx context.Context, r *run, area models.AreaSpec) areaResult {
	doc, err := c.fetcher.FetchArea(ctx, area)
	if err != nil {
		label := errorTypeLabel(err)
		slog.Error("area fetch failed",
			slog.String("area", string(area)),
			slog.String("category", label),
			slog.Any("error", err),
		)
		r.mu.Lock()
		r.stats.AreasFailed++
		r.stats.Errors++
		r.errorsByType[label]++
		r.mu.Unlock()
		return areaResult{area: area, err: err}
	}

	pooled := c.extractor.Collect(doc, area)
	for _, cand := range pooled {
		c.Metrics.IncCandidate(cand.Strategy)
	}
	unique := extract.Aggregate(pooled)
	kept, dropped := r.deduper.Filter(unique)
	duplicates := len(pooled) - len(unique) + dropped
	c.Metrics.AddDuplicates(duplicates)

	listings := make([]*models.ResolvedListing, 0, len(kept))
	for _, cand := range kept {
		if ctx.Err() != nil {
			break
		}
		listings = append(listings, c.resolver.Resolve(ctx, cand))
	}

	if r.p != nil && len(listings) > 0 {
		if err := r.p.Process(listings...); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
			slog.Error("pipeline process error", slog.String("area", string(area)), slog.Any("error", err))
		}
	}

	r.mu.Lock()
	r.stats.AreasProcessed++
	r.stats.Candidates += len(pooled)
	r.stats.Duplicates += duplicates
	r.mu.Unlock()

	slog.Info("area processed",
		slog.String("area", string(area)),
		slog.Int("candidates", len(pooled)),
		slog.Int("listings", len(listings)),
		slog.Int("duplicates", duplicates),
	)
	return areaResult{area: area, listings: listings}
}

// save hands listings to the sink one at a time. A failed lookup or create
// counts as an error and never stops the loop.
func (c *Crawler) save(ctx context.Context, r *run, listings []*models.ResolvedListing) {
	for _, listing := range listings {
		outcome := c.saveOne(ctx, listing)
		c.Metrics.IncSinkOutcome(outcome)

		r.mu.Lock()
		r.stats.Processed++
		switch outcome {
		case "saved":
			r.stats.Saved++
		case "skipped":
			r.stats.Skipped++
		default:
			r.stats.Errors++
		}
		r.mu.Unlock()
	}
}

func (c *Crawler) saveOne(ctx context.Context, listing *models.ResolvedListing) string {
	existing, err := c.sink.FindByNaturalKey(ctx, listing.Name, listing.Address)
	if err != nil {
		c.logPersistence(&storage.PersistenceError{Op: "find", Title: listing.Name, Err: err})
		return "error"
	}
	if existing != nil {
		slog.Debug("listing already stored", slog.String("name", listing.Name), slog.Int64("id", existing.ID))
		return "skipped"
	}
	if _, err := c.sink.Create(ctx, listing); err != nil {
		c.logPersistence(&storage.PersistenceError{Op: "create", Title: listing.Name, Err: err})
		return "error"
	}
	return "saved"
}

func (c *Crawler) logPersistence(err *storage.PersistenceError) {
	slog.Error("persistence failed", slog.Any("error", err))
}
