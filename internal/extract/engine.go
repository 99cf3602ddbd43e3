package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flatwatch/internal/domain"
)

// Fields runs the field map against every container match in the document.
// A field whose selector matches nothing, or whose attribute is absent, stays
// empty; a single bad field never aborts the container's extraction.
func Fields(html, containerSelector string, fields map[string]Expr) ([]domain.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	containers := doc.Find(containerSelector)
	if containers.Length() == 0 {
		return nil, fmt.Errorf("selector %q matched no elements", containerSelector)
	}

	listings := make([]domain.RawListing, 0, containers.Length())
	containers.Each(func(_ int, container *goquery.Selection) {
		raw := domain.RawListing{}
		for name, expr := range fields {
			value := evalExpr(container, expr)
			assignField(&raw, name, value)
		}
		listings = append(listings, raw)
	})

	return listings, nil
}

func evalExpr(container *goquery.Selection, expr Expr) string {
	if value := evalPart(container, expr.Primary); value != "" {
		return value
	}
	if expr.Alt != nil {
		return evalPart(container, *expr.Alt)
	}
	return ""
}

func evalPart(container *goquery.Selection, part Part) string {
	target := container
	if part.Selector != "" && part.Selector != "*" {
		target = container.Find(part.Selector).First()
		if target.Length() == 0 {
			return ""
		}
	}

	if part.Attribute != "" {
		value, _ := target.Attr(part.Attribute)
		return strings.TrimSpace(value)
	}
	return collapseText(target.Text())
}

// collapseText trims surrounding whitespace and folds internal newlines (and
// the indentation that follows them) into single spaces.
func collapseText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func assignField(raw *domain.RawListing, name, value string) {
	switch name {
	case "id":
		raw.ID = value
	case "title":
		raw.Title = value
	case "price":
		raw.Price = value
	case "size":
		raw.Size = value
	case "address":
		raw.Address = value
	case "link":
		raw.Link = value
	case "description":
		raw.Description = value
	case "image":
		raw.Image = value
	}
}
