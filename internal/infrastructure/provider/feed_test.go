package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const fixtureRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>berlin apts/housing for rent</title>
    <item>
      <title>Sunny loft with balcony $1,450 68m2 (Mitte)</title>
      <link>https://berlin.craigslist.org/apa/d/sunny-loft/7701.html</link>
      <guid>https://berlin.craigslist.org/apa/d/sunny-loft/7701.html</guid>
      <description>&lt;p&gt;Bright south-facing loft.&lt;/p&gt;</description>
    </item>
    <item>
      <title>Small room $620 (Wedding)</title>
      <link>https://berlin.craigslist.org/apa/d/small-room/7702.html</link>
      <guid>https://berlin.craigslist.org/apa/d/small-room/7702.html</guid>
      <description>Cozy room.</description>
    </item>
  </channel>
</rss>`

func TestFeedProviderScrape(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(fixtureRSS))
	}))
	defer server.Close()

	p := NewCraigslist(server.URL+"/search/apa", "u1", nil, nil, nil)

	listings := p.Scrape(context.Background(), 10)
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.Title != "Sunny loft with balcony $1,450 68m2" {
		t.Fatalf("area suffix not trimmed from title: %q", first.Title)
	}
	if first.Price != "$1,450" {
		t.Fatalf("price not extracted from title: %q", first.Price)
	}
	if first.Size != "68m2" {
		t.Fatalf("size not extracted from title: %q", first.Size)
	}
	if first.Address != "Mitte" {
		t.Fatalf("area not extracted: %q", first.Address)
	}
	if first.Description != "Bright south-facing loft." {
		t.Fatalf("html not stripped from description: %q", first.Description)
	}

	if !containsParam(gotQuery, "format=rss") || !containsParam(gotQuery, "sort=date") {
		t.Fatalf("feed query not normalized: %q", gotQuery)
	}
}

func TestFeedProviderBadFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not a feed</html>"))
	}))
	defer server.Close()

	p := NewCraigslist(server.URL+"/search/apa", "u1", nil, nil, nil)

	if got := p.Scrape(context.Background(), 10); got != nil {
		t.Fatalf("expected nil on unparseable feed, got %d listings", len(got))
	}
	if p.ConsecutiveErrors() != 1 {
		t.Fatalf("expected 1 consecutive error, got %d", p.ConsecutiveErrors())
	}
}
