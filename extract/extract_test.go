package extract

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

const areaPage = `<html><body>
<table><tr><td><b>SRI LUXURY PG</b></td></tr></table>
<table><tr>
<td>Address: 5th Block, Koramangala Landmark: Near Metro</td>
<td>Call 9876543210 <a href="sri-luxury-pg.html">View</a></td>
</tr></table>
<div class="listing"><h3>SRI LUXURY PG</h3><p>Address: 5th Block, Koramangala Landmark: Near Metro</p></div>
</body></html>`

func newDoc(t *testing.T, rawURL, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	doc.Url = u
	return doc
}

func TestExtractorReconcilesStrategies(t *testing.T) {
	doc := newDoc(t, "http://example.test/koramangala", areaPage)
	e := NewExtractor(config.DefaultProfile())

	pooled := e.Collect(doc, "koramangala")
	if len(pooled) != 2 {
		t.Fatalf("pooled candidates = %d, want 2: %+v", len(pooled), pooled)
	}

	got := e.Extract(doc, "koramangala")
	if len(got) != 1 {
		t.Fatalf("listings = %d, want 1: %+v", len(got), got)
	}
	c := got[0]
	if c.Name != "SRI LUXURY PG" {
		t.Fatalf("name = %q", c.Name)
	}
	if c.Address != "5th Block, Koramangala Landmark: Near Metro" {
		t.Fatalf("address = %q", c.Address)
	}
	if c.Contact != "9876543210" {
		t.Fatalf("contact = %q", c.Contact)
	}
	if c.DetailPageURL != "http://example.test/sri-luxury-pg.html" {
		t.Fatalf("detail url = %q", c.DetailPageURL)
	}
	if c.Strategy != StrategyTablePair {
		t.Fatalf("strategy = %q, want %q", c.Strategy, StrategyTablePair)
	}
	if c.Area != "koramangala" || c.Source != "pg-directory" {
		t.Fatalf("area/source = %q/%q", c.Area, c.Source)
	}
	if !c.AmenitiesDefaulted || !reflect.DeepEqual(c.Amenities, parser.DefaultAmenities) {
		t.Fatalf("amenities = %v (defaulted=%v), want fallback", c.Amenities, c.AmenitiesDefaulted)
	}
}

func TestTableRowStrategy(t *testing.T) {
	body := `<table>
<tr><th>Name</th><th>Address</th><th>Phone</th></tr>
<tr><td>GREEN EXECUTIVE PG</td><td>Address: 4th Main, HSR Layout Sector 2</td><td>9123456789</td></tr>
<tr><td>Blue Stay</td><td>Address: 1st Cross, BTM Layout</td><td>9000000000</td></tr>
</table>`
	doc := newDoc(t, "http://example.test/hsr-layout", body)

	got := NewTableRowStrategy(config.DefaultProfile()).Extract(doc, "hsr-layout")
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1: %+v", len(got), got)
	}
	if got[0].Name != "GREEN EXECUTIVE PG" || got[0].Address != "4th Main, HSR Layout Sector 2" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Contact != "9123456789" {
		t.Fatalf("contact = %q", got[0].Contact)
	}
	if got[0].DetailPageURL != "" {
		t.Fatalf("table rows should not capture detail links")
	}
}

func TestListStrategyAmenities(t *testing.T) {
	body := `<ul>
<li>ROYAL PG Address: Near Forum Mall, Koramangala. Free WiFi, food and laundry</li>
<li>no marker here Address: Somewhere long enough</li>
</ul>`
	doc := newDoc(t, "http://example.test/koramangala", body)

	got := NewListStrategy(config.DefaultProfile()).Extract(doc, "koramangala")
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	if got[0].Name != "ROYAL PG" {
		t.Fatalf("name = %q", got[0].Name)
	}
	want := []string{"wifi", "meals", "laundry"}
	if !reflect.DeepEqual(got[0].Amenities, want) || got[0].AmenitiesDefaulted {
		t.Fatalf("amenities = %v (defaulted=%v), want %v", got[0].Amenities, got[0].AmenitiesDefaulted, want)
	}
}

func TestTextBlockStrategyRequiresLength(t *testing.T) {
	long := "EXECUTIVE PG for working professionals\nAddress: 22, 7th Cross, Indiranagar 2nd Stage, close to the metro station and CMH road"
	body := fmt.Sprintf(`<p>%s</p><p>SHORT PG Address: Indiranagar</p>`, long)
	doc := newDoc(t, "http://example.test/indiranagar", body)

	got := NewTextBlockStrategy(config.DefaultProfile()).Extract(doc, "indiranagar")
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1: %+v", len(got), got)
	}
	if got[0].Name != "EXECUTIVE PG for working professionals" {
		t.Fatalf("name = %q", got[0].Name)
	}
}

func TestDivStrategyPrefersInnermostCard(t *testing.T) {
	body := `<div id="wrapper">
<div class="card"><h3>ALPHA PG</h3><p>Address: 1st Main, Jayanagar 4th Block</p></div>
<div class="card"><h3>BETA LUXURY PG</h3><p>Address: 9th Cross, Jayanagar 9th Block</p></div>
</div>`
	doc := newDoc(t, "http://example.test/jayanagar", body)

	got := NewDivStrategy(config.DefaultProfile()).Extract(doc, "jayanagar")
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2: %+v", len(got), got)
	}
	if got[0].Name != "ALPHA PG" || got[1].Name != "BETA LUXURY PG" {
		t.Fatalf("names = %q, %q", got[0].Name, got[1].Name)
	}

	badge := `<div class="card"><div class="badge">LUXURY PG</div><p>Address: 9th Cross, Jayanagar 9th Block</p></div>`
	doc = newDoc(t, "http://example.test/jayanagar", badge)

	got = NewDivStrategy(config.DefaultProfile()).Extract(doc, "jayanagar")
	if len(got) != 1 {
		t.Fatalf("badge card candidates = %d, want 1: %+v", len(got), got)
	}
	if got[0].Name != "LUXURY PG" || got[0].Address != "9th Cross, Jayanagar 9th Block" {
		t.Fatalf("badge card candidate = %+v", got[0])
	}
}

func TestTextBlockStrategySkipsContainers(t *testing.T) {
	wrapped := strings.Replace(areaPage, "<body>", `<body><div id="content">`, 1)
	wrapped = strings.Replace(wrapped, "</body>", "</div></body>", 1)
	doc := newDoc(t, "http://example.test/koramangala", wrapped)
	profile := config.DefaultProfile()

	if got := NewTextBlockStrategy(profile).Extract(doc, "koramangala"); len(got) != 0 {
		t.Fatalf("container emitted as text block: %+v", got)
	}
	if got := NewExtractor(profile).Collect(doc, "koramangala"); len(got) != 2 {
		t.Fatalf("pooled candidates = %d, want 2: %+v", len(got), got)
	}
	got := NewExtractor(profile).Extract(doc, "koramangala")
	if len(got) != 1 || got[0].Strategy != StrategyTablePair {
		t.Fatalf("listings = %+v, want the single table-pair listing", got)
	}

	long := "EXECUTIVE PG for working professionals\nAddress: 22, 7th Cross, Indiranagar 2nd Stage, close to the metro station and CMH road"
	doc = newDoc(t, "http://example.test/indiranagar", fmt.Sprintf(`<div id="content"><p>%s</p></div>`, long))
	got = NewTextBlockStrategy(profile).Extract(doc, "indiranagar")
	if len(got) != 1 || got[0].Name != "EXECUTIVE PG for working professionals" {
		t.Fatalf("nested paragraph candidates = %+v, want the paragraph only", got)
	}
}

func TestStrategiesOnlyEmitValidCandidates(t *testing.T) {
	body := `<ul><li>PG</li><li>ROYAL PG Address: tiny</li></ul>
<div>LUXURY Address: Near the lake, Bellandur</div>
<table><tr><td>A PG</td><td>Address: 3rd Cross, Whitefield</td></tr></table>`
	doc := newDoc(t, "http://example.test/bellandur", body)

	for _, c := range NewExtractor(config.DefaultProfile()).Collect(doc, "bellandur") {
		if err := parser.ValidateCandidate(&c); err != nil {
			t.Fatalf("strategy %s emitted invalid candidate %+v: %v", c.Strategy, c, err)
		}
	}
}

func TestMarkersAreCaseSensitive(t *testing.T) {
	body := `<ul><li>Sunrise pg Address: 14th Main, Sector 6, HSR Layout</li></ul>`
	doc := newDoc(t, "http://example.test/hsr-layout", body)

	if got := NewExtractor(config.DefaultProfile()).Extract(doc, "hsr-layout"); len(got) != 0 {
		t.Fatalf("lower-case marker should not match: %+v", got)
	}
}

func TestAggregate(t *testing.T) {
	cands := []models.ListingCandidate{
		{Name: "Sri Luxury PG", Address: "5th Block, Koramangala", Strategy: StrategyTablePair},
		{Name: "SRI LUXURY PG", Address: "5th block, koramangala", Strategy: StrategyDiv},
		{Name: "Green Executive PG", Address: "4th Main, HSR Layout", Strategy: StrategyList},
	}

	once := Aggregate(cands)
	if len(once) != 2 {
		t.Fatalf("aggregate = %d, want 2", len(once))
	}
	if once[0].Strategy != StrategyTablePair {
		t.Fatalf("first-seen candidate should win, got %q", once[0].Strategy)
	}
	if twice := Aggregate(once); !reflect.DeepEqual(once, twice) {
		t.Fatalf("aggregate is not idempotent: %+v vs %+v", once, twice)
	}
	if len(cands) != 3 {
		t.Fatalf("input was modified")
	}
	if Aggregate(nil) != nil {
		t.Fatalf("aggregate of nil should be nil")
	}
}

func TestDeduperAcrossAreas(t *testing.T) {
	d := NewDeduper()
	first := []models.ListingCandidate{
		{Name: "Sri Luxury PG", Address: "5th Block, Koramangala", Area: "koramangala"},
	}
	second := []models.ListingCandidate{
		{Name: "sri luxury pg", Address: "5TH BLOCK, KORAMANGALA", Area: "hsr-layout"},
		{Name: "Green Executive PG", Address: "4th Main, HSR Layout", Area: "hsr-layout"},
	}

	kept, dropped := d.Filter(first)
	if len(kept) != 1 || dropped != 0 {
		t.Fatalf("first area kept=%d dropped=%d", len(kept), dropped)
	}
	kept, dropped = d.Filter(second)
	if len(kept) != 1 || dropped != 1 {
		t.Fatalf("second area kept=%d dropped=%d", len(kept), dropped)
	}
	if kept[0].Name != "Green Executive PG" {
		t.Fatalf("kept %q", kept[0].Name)
	}
	if d.Len() != 2 {
		t.Fatalf("len = %d, want 2", d.Len())
	}
}

func TestAcceptImageURL(t *testing.T) {
	profile := config.DefaultProfile()
	input := []string{"a/logo.png", "b/photo.jpg", "c/icon.webp", "d/gallery.jpeg"}

	var accepted []string
	for _, raw := range input {
		if AcceptImageURL(raw, profile) {
			accepted = append(accepted, raw)
		}
	}
	want := []string{"b/photo.jpg", "d/gallery.jpeg"}
	if !reflect.DeepEqual(accepted, want) {
		t.Fatalf("accepted = %v, want %v", accepted, want)
	}

	rejected := []string{"", "room.pdf", "http://example.test/img/room", "http://example.test/BANNER/top.jpg"}
	for _, raw := range rejected {
		if AcceptImageURL(raw, profile) {
			t.Fatalf("AcceptImageURL(%q) = true", raw)
		}
	}
	if !AcceptImageURL("http://example.test/room.JPG?w=800", profile) {
		t.Fatalf("query string and upper-case extension should be accepted")
	}
}

func TestImagesCollectsBothPasses(t *testing.T) {
	body := `<html><body>
<img src="/static/logo.png">
<img src="rooms/room-1.jpg" alt=" Room one ">
<img src="rooms/room-1.jpg">
<img src="/static/icon-wifi.webp">
<div class="gallery">
  <img data-src="rooms/room-2.webp">
  <a href="rooms/room-3.png">Full size</a>
</div>
</body></html>`
	doc := newDoc(t, "http://example.test/sri-luxury-pg.html", body)

	images := Images(doc, config.DefaultProfile())
	want := []string{
		"http://example.test/rooms/room-1.jpg",
		"http://example.test/rooms/room-2.webp",
		"http://example.test/rooms/room-3.png",
	}
	if len(images) != len(want) {
		t.Fatalf("images = %+v, want %v", images, want)
	}
	for i, img := range images {
		if img.URL != want[i] {
			t.Fatalf("image %d = %q, want %q", i, img.URL, want[i])
		}
		if img.IsPrimary != (i == 0) {
			t.Fatalf("image %d primary = %v", i, img.IsPrimary)
		}
	}
	if images[0].Alt != "Room one" {
		t.Fatalf("alt = %q", images[0].Alt)
	}
}

func TestImagesCapAndSinglePrimary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, `<img src="photos/p%d.jpg">`, i)
	}
	doc := newDoc(t, "http://example.test/detail.html", b.String())

	profile := config.DefaultProfile()
	images := Images(doc, profile)
	if len(images) != profile.MaxImages {
		t.Fatalf("images = %d, want %d", len(images), profile.MaxImages)
	}
	primaries := 0
	for _, img := range images {
		if img.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("primary count = %d, want 1", primaries)
	}
}

func TestImagesEmptyPage(t *testing.T) {
	doc := newDoc(t, "http://example.test/empty.html", `<p>No photos</p>`)
	if images := Images(doc, config.DefaultProfile()); len(images) != 0 {
		t.Fatalf("images = %+v, want none", images)
	}
}

func TestPlaceholderImages(t *testing.T) {
	profile := config.DefaultProfile()
	images := PlaceholderImages(profile)
	if len(images) != 1 || !images[0].IsPrimary || !images[0].Placeholder {
		t.Fatalf("placeholder = %+v", images)
	}
	if images[0].URL != profile.PlaceholderImageURL {
		t.Fatalf("url = %q", images[0].URL)
	}
}
