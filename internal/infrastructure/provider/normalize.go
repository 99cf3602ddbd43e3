package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"flatwatch/internal/domain"
)

// titleNoise strips the marketing decorations sellers prepend to titles.
var titleNoise = regexp.MustCompile(`(?i)^\s*(?:[*+~#!✓✔★☆]+\s*|(?:neu|top|wow|achtung|angebot|dringend)\b[:!\s-]*)+`)

// sessionParams are query parameters that pin a result page to one visitor
// session; they break shared requests and must not leak into fetch URLs.
// Matching is case-insensitive (sources disagree on userId vs userid).
var sessionParams = map[string]struct{}{
	"sid": {}, "session": {}, "sessionid": {},
	"userid": {}, "user_id": {},
	"token": {}, "csrf": {}, "tracking": {},
}

// normalizeSource rewrites the configured source URL: session parameters are
// stripped and the provider's newest-first sort parameters are forced so the
// result order approximates recency.
func normalizeSource(source string, force map[string]string) (string, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", source, err)
	}

	query := parsed.Query()
	for param := range query {
		if _, drop := sessionParams[strings.ToLower(param)]; drop {
			query.Del(param)
		}
	}
	for key, value := range force {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// absoluteLink resolves a possibly relative href against the provider domain.
func absoluteLink(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if parsed.IsAbs() {
		return parsed.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return link
	}
	return baseURL.ResolveReference(parsed).String()
}

func cleanTitle(title string) string {
	title = titleNoise.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}

// decodeIfEncoded unescapes fields the source emits URL-encoded; anything
// that does not decode cleanly is kept as-is.
func decodeIfEncoded(value string) string {
	if !strings.Contains(value, "%") {
		return value
	}
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

// buildListing turns one raw record into a canonical listing. Records without
// a link, or without a usable title or price, are structurally invalid and
// reported as not ok.
func buildListing(raw domain.RawListing, source, base string) (domain.Listing, bool) {
	link := absoluteLink(base, decodeIfEncoded(raw.Link))
	title := cleanTitle(decodeIfEncoded(raw.Title))
	price := strings.Join(strings.Fields(raw.Price), " ")

	if link == "" || (title == "" && price == "") {
		return domain.Listing{}, false
	}

	id := strings.TrimSpace(raw.ID)
	return domain.Listing{
		ID:          id,
		Title:       title,
		Price:       price,
		Size:        strings.Join(strings.Fields(raw.Size), " "),
		Address:     strings.Join(strings.Fields(decodeIfEncoded(raw.Address)), " "),
		Link:        link,
		Description: strings.TrimSpace(raw.Description),
		Image:       absoluteLink(base, raw.Image),
		Hash:        domain.Fingerprint(source, id, link),
		Source:      source,
	}, true
}

// buildListings filters and normalizes a raw batch, preserving source order.
func buildListings(raws []domain.RawListing, source, base string) []domain.Listing {
	listings := make([]domain.Listing, 0, len(raws))
	for _, raw := range raws {
		if listing, ok := buildListing(raw, source, base); ok {
			listings = append(listings, listing)
		}
	}
	return listings
}
