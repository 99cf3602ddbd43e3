package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

const immoscoutBase = "https://www.immobilienscout24.de"

// immoscout renders its result list from a server-injected state object; the
// DOM itself is unstable, so the provider reads the blob instead of selectors.
const immoscoutStateScript = `
(function() {
	var state = window.IS24 && window.IS24.resultList;
	if (!state || !state.resultListModel) { return null; }
	return state.resultListModel.searchResponseModel.entries;
})()`

type embeddedEntry struct {
	ID          string  `json:"@id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	LivingSpace float64 `json:"livingSpace"`
	Address     string  `json:"address"`
	PictureURL  string  `json:"pictureUrl"`
}

// EmbeddedProvider extracts the JSON state blob a server-rendered page embeds
// for its client-side app, via the browser service's evaluate capability.
type EmbeddedProvider struct {
	unit
	browser ports.BrowserService
}

// NewImmoscout builds the immobilienscout24.de embedded-state provider.
func NewImmoscout(source, token string, browser ports.BrowserService, logger *slog.Logger, recorder ports.ErrorRecorder) *EmbeddedProvider {
	return &EmbeddedProvider{
		unit:    newUnit("immoscout", source, token, logger, recorder),
		browser: browser,
	}
}

// Scrape navigates to the result page, reads the embedded result-list state,
// and normalizes its entries. Never returns an error outward.
func (e *EmbeddedProvider) Scrape(ctx context.Context, maxResults int) []domain.Listing {
	ctx = noCtx(ctx)

	pageURL, err := normalizeSource(e.source, map[string]string{"sorting": "-firstactivation"})
	if err != nil {
		e.fail(err)
		return nil
	}

	blob, err := e.browser.Evaluate(ctx, pageURL, immoscoutStateScript, "")
	if err != nil {
		e.fail(fmt.Errorf("evaluate result state at %s: %w", pageURL, err))
		return nil
	}
	if len(blob) == 0 || string(blob) == "null" {
		e.fail(fmt.Errorf("embedded result state not found in document at %s", pageURL))
		return nil
	}

	var entries []embeddedEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		e.fail(fmt.Errorf("decode result state: %w", err))
		return nil
	}

	raws := make([]domain.RawListing, 0, len(entries))
	for _, entry := range entries {
		raw := domain.RawListing{
			ID:      entry.ID,
			Title:   entry.Title,
			Address: entry.Address,
			Image:   entry.PictureURL,
		}
		if entry.ID != "" {
			raw.Link = immoscoutBase + "/expose/" + entry.ID
		}
		if entry.Price > 0 {
			raw.Price = strconv.FormatFloat(entry.Price, 'f', -1, 64) + " €"
		}
		if entry.LivingSpace > 0 {
			raw.Size = strconv.FormatFloat(entry.LivingSpace, 'f', -1, 64) + " m²"
		}
		raws = append(raws, raw)
	}

	listings := buildListings(raws, e.key, immoscoutBase)
	if len(listings) == 0 {
		e.fail(fmt.Errorf("embedded state at %s held no usable entries", pageURL))
		return nil
	}

	e.succeed(len(listings))
	return truncate(listings, maxResults)
}
