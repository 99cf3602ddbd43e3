package extract

import "testing"

func TestParseExprSelectorOnly(t *testing.T) {
	t.Parallel()

	expr := ParseExpr("h3.truncate_title a")
	if expr.Primary.Selector != "h3.truncate_title a" {
		t.Fatalf("unexpected selector: %q", expr.Primary.Selector)
	}
	if expr.Primary.Attribute != "" {
		t.Fatalf("expected no attribute, got %q", expr.Primary.Attribute)
	}
	if expr.Alt != nil {
		t.Fatal("expected no alternate")
	}
}

func TestParseExprWithAttribute(t *testing.T) {
	t.Parallel()

	expr := ParseExpr("a.detailansicht@href")
	if expr.Primary.Selector != "a.detailansicht" {
		t.Fatalf("unexpected selector: %q", expr.Primary.Selector)
	}
	if expr.Primary.Attribute != "href" {
		t.Fatalf("unexpected attribute: %q", expr.Primary.Attribute)
	}
}

func TestParseExprWithAlternate(t *testing.T) {
	t.Parallel()

	expr := ParseExpr("img@data-src|img@src")
	if expr.Alt == nil {
		t.Fatal("expected an alternate part")
	}
	if expr.Alt.Selector != "img" || expr.Alt.Attribute != "src" {
		t.Fatalf("unexpected alternate: %+v", expr.Alt)
	}
}

func TestParseExprContainerItself(t *testing.T) {
	t.Parallel()

	expr := ParseExpr("*@data-id")
	if expr.Primary.Selector != "*" {
		t.Fatalf("unexpected selector: %q", expr.Primary.Selector)
	}
	if expr.Primary.Attribute != "data-id" {
		t.Fatalf("unexpected attribute: %q", expr.Primary.Attribute)
	}
}

func TestParseFieldMap(t *testing.T) {
	t.Parallel()

	fields := ParseFieldMap(map[string]string{
		"title": "h2",
		"link":  "a@href",
	})

	if len(fields) != 2 {
		t.Fatalf("expected 2 parsed expressions, got %d", len(fields))
	}
	if fields["link"].Primary.Attribute != "href" {
		t.Fatalf("unexpected link expression: %+v", fields["link"])
	}
}
