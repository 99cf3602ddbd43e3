package provider

import (
	"context"
	"fmt"
	"log/slog"

	"flatwatch/internal/domain"
	"flatwatch/internal/extract"
	"flatwatch/internal/ports"
)

// domProfile describes how one browser-rendered site is scraped: where the
// offer cards live, how each field is read out of a card, and which query
// parameters pin the result order to newest-first.
type domProfile struct {
	key          string
	baseURL      string
	container    string
	fields       map[string]extract.Expr
	waitSelector string
	forceParams  map[string]string
}

var wgGesuchtProfile = domProfile{
	key:       "wggesucht",
	baseURL:   "https://www.wg-gesucht.de",
	container: "div.offer_list_item",
	fields: extract.ParseFieldMap(map[string]string{
		"id":          "*@data-id",
		"title":       "h3.truncate_title a",
		"link":        "h3.truncate_title a@href",
		"price":       "div.middle b",
		"size":        "div.middle div.text-right",
		"address":     "div.col-xs-11 span",
		"description": "p.list-details-panel-text",
		"image":       "div.card_image a@data-bg|div.card_image img@src",
	}),
	waitSelector: "div.offer_list_item",
	forceParams:  map[string]string{"sort_column": "0", "sort_order": "0"},
}

var immoweltProfile = domProfile{
	key:       "immowelt",
	baseURL:   "https://www.immowelt.de",
	container: "div[data-testid='serp-card']",
	fields: extract.ParseFieldMap(map[string]string{
		"title":   "div[data-testid='cardmfe-description-box-text-test-id'] h2",
		"link":    "a@href",
		"price":   "div[data-testid='cardmfe-price-test-id']",
		"size":    "div[data-testid='cardmfe-keyfacts-test-id']",
		"address": "div[data-testid='cardmfe-description-box-address']",
		"image":   "img@src",
	}),
	waitSelector: "div[data-testid='serp-card']",
	forceParams:  map[string]string{"order": "DateDesc"},
}

// DOMProvider scrapes a browser-rendered result page through the shared
// browser session and the extraction engine.
type DOMProvider struct {
	unit
	profile domProfile
	browser ports.BrowserService
}

// NewWGGesucht builds the wg-gesucht.de DOM provider for one user's source URL.
func NewWGGesucht(source, token string, browser ports.BrowserService, logger *slog.Logger, recorder ports.ErrorRecorder) *DOMProvider {
	return newDOMProvider(wgGesuchtProfile, source, token, browser, logger, recorder)
}

// NewImmowelt builds the immowelt.de DOM provider for one user's source URL.
func NewImmowelt(source, token string, browser ports.BrowserService, logger *slog.Logger, recorder ports.ErrorRecorder) *DOMProvider {
	return newDOMProvider(immoweltProfile, source, token, browser, logger, recorder)
}

func newDOMProvider(profile domProfile, source, token string, browser ports.BrowserService, logger *slog.Logger, recorder ports.ErrorRecorder) *DOMProvider {
	return &DOMProvider{
		unit:    newUnit(profile.key, source, token, logger, recorder),
		profile: profile,
		browser: browser,
	}
}

// Scrape renders the result page and extracts up to maxResults listings,
// newest-first. It never returns an error: failures end up as an empty slice
// plus an extended error streak.
func (d *DOMProvider) Scrape(ctx context.Context, maxResults int) []domain.Listing {
	ctx = noCtx(ctx)

	pageURL, err := normalizeSource(d.source, d.profile.forceParams)
	if err != nil {
		d.fail(err)
		return nil
	}

	raws, err := d.browser.Scrape(ctx, pageURL, d.profile.container, d.profile.fields, d.profile.waitSelector)
	if err != nil {
		d.fail(fmt.Errorf("render %s: %w", pageURL, err))
		return nil
	}

	listings := buildListings(raws, d.key, d.profile.baseURL)
	if len(listings) == 0 {
		d.fail(fmt.Errorf("selector %q yielded no usable listings at %s", d.profile.container, pageURL))
		return nil
	}

	d.succeed(len(listings))
	return truncate(listings, maxResults)
}
