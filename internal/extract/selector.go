// Package extract evaluates declarative selector mappings against rendered
// HTML and returns raw field maps. Expressions follow the grammar
//
//	selector['@'attribute]['|'alternate]
//
// where "*" selects the container element itself and only the first alternate
// is honored. Expressions are parsed once at provider-registration time, not
// per element per scrape.
package extract

import "strings"

// Part is a single selector with an optional attribute to read.
type Part struct {
	Selector  string
	Attribute string
}

// Expr is a parsed field expression: the primary part plus an optional
// alternate tried when the primary yields nothing.
type Expr struct {
	Primary Part
	Alt     *Part
}

// ParseExpr turns the string form into a typed descriptor.
func ParseExpr(raw string) Expr {
	primary, rest, hasAlt := strings.Cut(raw, "|")

	expr := Expr{Primary: parsePart(primary)}
	if hasAlt && strings.TrimSpace(rest) != "" {
		alt := parsePart(rest)
		expr.Alt = &alt
	}
	return expr
}

// ParseFieldMap parses every expression of a fieldName -> expression mapping.
func ParseFieldMap(raw map[string]string) map[string]Expr {
	fields := make(map[string]Expr, len(raw))
	for name, expr := range raw {
		fields[name] = ParseExpr(expr)
	}
	return fields
}

func parsePart(raw string) Part {
	sel, attr, _ := strings.Cut(raw, "@")
	return Part{
		Selector:  strings.TrimSpace(sel),
		Attribute: strings.TrimSpace(attr),
	}
}
