package extract

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// Images collects listing photos from a fetched page. Every img[src] is read
// first, then the gallery containers are searched for lazy-loaded sources and
// linked photos. URLs are resolved against the page URL, filtered by
// AcceptImageURL, deduplicated exactly and capped at profile.MaxImages. The
// first image kept is primary. An empty result means the page had no usable
// photo.
func Images(doc *goquery.Document, profile *config.SiteProfile) []models.ImageAsset {
	c := imageCollector{doc: doc, profile: profile, seen: make(map[string]struct{})}

	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")
		return c.add(src, alt)
	})

	for _, selector := range profile.GallerySelectors {
		if c.full() {
			break
		}
		doc.Find(selector).EachWithBreak(func(_ int, gallery *goquery.Selection) bool {
			return c.addGallery(gallery)
		})
	}

	if len(c.images) > 0 {
		c.images[0].IsPrimary = true
	}
	return c.images
}

type imageCollector struct {
	doc     *goquery.Document
	profile *config.SiteProfile
	seen    map[string]struct{}
	images  []models.ImageAsset
}

func (c *imageCollector) full() bool {
	return len(c.images) >= c.profile.MaxImages
}

// add records one raw image reference and reports whether collection should
// continue.
func (c *imageCollector) add(raw, alt string) bool {
	if c.full() {
		return false
	}
	resolved := resolveURL(c.doc.Url, raw)
	if resolved == "" || !AcceptImageURL(resolved, c.profile) {
		return true
	}
	if _, dup := c.seen[resolved]; dup {
		return true
	}
	c.seen[resolved] = struct{}{}
	c.images = append(c.images, models.ImageAsset{URL: resolved, Alt: strings.TrimSpace(alt)})
	return !c.full()
}

func (c *imageCollector) addGallery(gallery *goquery.Selection) bool {
	more := true
	gallery.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		alt, _ := img.Attr("alt")
		if src, ok := img.Attr("src"); ok {
			more = c.add(src, alt)
		}
		for _, attr := range c.profile.LazyImageAttrs {
			if !more {
				break
			}
			if src, ok := img.Attr(attr); ok {
				more = c.add(src, alt)
			}
		}
		return more
	})
	if !more {
		return false
	}
	gallery.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		more = c.add(href, a.AttrOr("title", ""))
		return more
	})
	return more
}

// AcceptImageURL reports whether raw points at a photo: its path must end in
// a configured image extension and the URL must not contain any exclusion
// keyword.
func AcceptImageURL(raw string, profile *config.SiteProfile) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return false
	}
	p := lower
	if u, err := url.Parse(lower); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	if ext == "" {
		return false
	}

	matched := false
	for _, allowed := range profile.ImageExtensions {
		if ext == strings.ToLower(allowed) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, keyword := range profile.ImageExcludeKeywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			return false
		}
	}
	return true
}

// PlaceholderImages returns the single primary placeholder asset.
func PlaceholderImages(profile *config.SiteProfile) []models.ImageAsset {
	return []models.ImageAsset{{
		URL:         profile.PlaceholderImageURL,
		Alt:         "placeholder",
		IsPrimary:   true,
		Placeholder: true,
	}}
}
