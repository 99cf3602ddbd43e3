package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-resty/resty/v2"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

const kleinanzeigenBase = "https://www.kleinanzeigen.de"

// The mobile API accepts a fixed app credential; it is not tied to any user
// account, which keeps requests shareable across watchers.
const (
	kleinanzeigenAPIUser = "android"
	kleinanzeigenAPIPass = "changeme-app-secret"
)

// apiAd mirrors the subset of the mobile search response the watcher needs.
type apiAd struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Price   string `json:"price"`
	Size    string `json:"squareMeters"`
	Address string `json:"location"`
	Link    string `json:"url"`
	Summary string `json:"description"`
	Image   string `json:"previewImage"`
}

type apiSearchResponse struct {
	Ads []apiAd `json:"ads"`
}

// APIProvider pulls listings from the reverse-engineered kleinanzeigen mobile
// search API instead of rendering the site.
type APIProvider struct {
	unit
	client *resty.Client
}

// NewKleinanzeigen builds the kleinanzeigen.de API provider for one user's
// search URL.
func NewKleinanzeigen(source, token string, client *resty.Client, logger *slog.Logger, recorder ports.ErrorRecorder) *APIProvider {
	return &APIProvider{
		unit:   newUnit("kleinanzeigen", source, token, logger, recorder),
		client: client,
	}
}

// Scrape queries the search API sorted newest-first and normalizes the
// response. Never returns an error outward.
func (a *APIProvider) Scrape(ctx context.Context, maxResults int) []domain.Listing {
	ctx = noCtx(ctx)

	queryURL, err := normalizeSource(a.source, map[string]string{
		"sortType": "DATE_DESCENDING",
		"limit":    strconv.Itoa(maxResults),
	})
	if err != nil {
		a.fail(err)
		return nil
	}

	var payload apiSearchResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBasicAuth(kleinanzeigenAPIUser, kleinanzeigenAPIPass).
		SetHeader("Accept", "application/json").
		SetResult(&payload).
		Get(queryURL)
	if err != nil {
		a.fail(fmt.Errorf("search request: %w", err))
		return nil
	}
	if resp.IsError() {
		a.fail(fmt.Errorf("search request: server returned %s", resp.Status()))
		return nil
	}

	raws := make([]domain.RawListing, 0, len(payload.Ads))
	for _, ad := range payload.Ads {
		raws = append(raws, domain.RawListing{
			ID:          ad.ID,
			Title:       ad.Title,
			Price:       ad.Price,
			Size:        ad.Size,
			Address:     ad.Address,
			Link:        ad.Link,
			Description: ad.Summary,
			Image:       ad.Image,
		})
	}

	listings := buildListings(raws, a.key, kleinanzeigenBase)
	if len(listings) == 0 {
		a.fail(fmt.Errorf("search at %s returned no usable ads", queryURL))
		return nil
	}

	a.succeed(len(listings))
	return truncate(listings, maxResults)
}
