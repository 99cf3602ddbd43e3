package provider

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// Craigslist search feeds put price and bedroom count into the item title,
// e.g. "Sunny 2BR near park $1,450 2br 68m2 (Mitte)".
var (
	feedPrice = regexp.MustCompile(`[$€]\s?[\d.,]+`)
	feedSize  = regexp.MustCompile(`\d+\s?m2`)
	feedArea  = regexp.MustCompile(`\(([^)]+)\)\s*$`)
)

// FeedProvider reads an RSS/Atom search feed. Feeds are already emitted
// newest-first; the sort parameter is forced anyway in case the source URL
// was copied from a relevance-sorted page.
type FeedProvider struct {
	unit
	parser *gofeed.Parser
}

// NewCraigslist builds the craigslist feed provider for one user's search feed.
func NewCraigslist(source, token string, parser *gofeed.Parser, logger *slog.Logger, recorder ports.ErrorRecorder) *FeedProvider {
	if parser == nil {
		parser = gofeed.NewParser()
	}
	return &FeedProvider{
		unit:   newUnit("craigslist", source, token, logger, recorder),
		parser: parser,
	}
}

// Scrape fetches and parses the feed. Never returns an error outward.
func (f *FeedProvider) Scrape(ctx context.Context, maxResults int) []domain.Listing {
	ctx = noCtx(ctx)

	feedURL, err := normalizeSource(f.source, map[string]string{
		"format": "rss",
		"sort":   "date",
	})
	if err != nil {
		f.fail(err)
		return nil
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		f.fail(fmt.Errorf("fetch feed %s: %w", feedURL, err))
		return nil
	}

	raws := make([]domain.RawListing, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		raws = append(raws, feedItemToRaw(item))
	}

	listings := buildListings(raws, f.key, feedURL)
	if len(listings) == 0 {
		f.fail(fmt.Errorf("feed %s contained no usable items", feedURL))
		return nil
	}

	f.succeed(len(listings))
	return truncate(listings, maxResults)
}

func feedItemToRaw(item *gofeed.Item) domain.RawListing {
	raw := domain.RawListing{
		ID:          item.GUID,
		Title:       item.Title,
		Link:        item.Link,
		Description: stripTags(item.Description),
		Price:       feedPrice.FindString(item.Title),
		Size:        feedSize.FindString(item.Title),
	}

	if match := feedArea.FindStringSubmatch(item.Title); len(match) == 2 {
		raw.Address = match[1]
		raw.Title = strings.TrimSpace(feedArea.ReplaceAllString(item.Title, ""))
	}
	if len(item.Enclosures) > 0 {
		raw.Image = item.Enclosures[0].URL
	}
	return raw
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(html, " ")), " ")
}
