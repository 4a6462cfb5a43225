package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/extract"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

// PageFetcher retrieves one detail or probe page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// ImageResolver attaches photos to deduplicated candidates.
type ImageResolver struct {
	fetcher PageFetcher
	siteURL func(path string) string
	profile *config.SiteProfile
	cache   cache.PageCache
	metrics *Metrics
	now     func() time.Time
}

// NewImageResolver builds a resolver. siteURL turns a probe path into an
// absolute URL on the origin site; pageCache may be nil.
func NewImageResolver(fetcher PageFetcher, siteURL func(string) string, profile *config.SiteProfile, pageCache cache.PageCache, metrics *Metrics) *ImageResolver {
	return &ImageResolver{
		fetcher: fetcher,
		siteURL: siteURL,
		profile: profile,
		cache:   pageCache,
		metrics: metrics,
		now:     time.Now,
	}
}

// Resolve never fails: it tries the captured detail page, then each probe URL
// in order, and falls back to the placeholder image.
func (r *ImageResolver) Resolve(ctx context.Context, cand models.ListingCandidate) *models.ResolvedListing {
	listing := &models.ResolvedListing{
		ListingCandidate: cand,
		ScrapedAt:        r.now().UTC(),
	}

	if cand.DetailPageURL != "" {
		if images := r.pageImages(ctx, cand.DetailPageURL); len(images) > 0 {
			return r.finish(listing, images, models.ImageSourceDetailPage)
		}
	}

	for _, probe := range r.ProbeURLs(cand) {
		if ctx.Err() != nil {
			break
		}
		if probe == cand.DetailPageURL {
			continue
		}
		if images := r.pageImages(ctx, probe); len(images) > 0 {
			return r.finish(listing, images, models.ImageSourceSpeculative)
		}
	}

	listing.PlaceholderImage = true
	return r.finish(listing, extract.PlaceholderImages(r.profile), models.ImageSourcePlaceholder)
}

// ProbeURLs builds the speculative detail page URLs for cand in pattern
// order. A name that slugs to nothing yields no probes.
func (r *ImageResolver) ProbeURLs(cand models.ListingCandidate) []string {
	slug := parser.Slugify(cand.Name)
	if slug == "" {
		return nil
	}
	urls := make([]string, 0, len(r.profile.ProbePatterns))
	for _, pattern := range r.profile.ProbePatterns {
		path := strings.NewReplacer("{slug}", slug, "{area}", string(cand.Area)).Replace(pattern)
		urls = append(urls, r.siteURL(path))
	}
	return urls
}

func (r *ImageResolver) finish(listing *models.ResolvedListing, images []models.ImageAsset, source string) *models.ResolvedListing {
	listing.Images = images
	listing.ImageSource = source
	r.metrics.IncResolved(source)
	return listing
}

// pageImages returns the photos on pageURL, consulting the page cache first.
// Pages that do not exist are cached as empty.
func (r *ImageResolver) pageImages(ctx context.Context, pageURL string) []models.ImageAsset {
	if r.cache != nil {
		images, ok, err := r.cache.Get(ctx, pageURL)
		if err != nil {
			slog.Warn("page cache lookup failed", slog.String("url", pageURL), slog.Any("error", err))
		}
		r.metrics.IncCacheLookup(ok)
		if ok {
			return images
		}
	}

	doc, err := r.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		fetchErr := &ImageFetchError{URL: pageURL, Err: err}
		slog.Debug("image page unavailable", slog.Any("error", fetchErr))
		var notFound ErrNotFound
		if errors.As(err, &notFound) {
			r.remember(ctx, pageURL, nil)
		}
		return nil
	}

	images := extract.Images(doc, r.profile)
	r.remember(ctx, pageURL, images)
	return images
}

func (r *ImageResolver) remember(ctx context.Context, pageURL string, images []models.ImageAsset) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, pageURL, images); err != nil {
		slog.Warn("page cache store failed", slog.String("url", pageURL), slog.Any("error", err))
	}
}
