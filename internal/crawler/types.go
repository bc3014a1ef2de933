package crawler

import (
	"context"

	"github.com/shopspring/decimal"
)

// RawDocument is a product page body that passed transport and challenge checks
type RawDocument struct {
	URL      string
	FinalURL string
	Status   int
	Body     string
}

// PriceResult is a successful extraction
type PriceResult struct {
	URL      string          `json:"url"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	RawPrice string          `json:"raw_price,omitempty"`
}

// Fetcher retrieves a product page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*RawDocument, error)
}

// Resolver is the contract the bookkeeping layer depends on.
// A false second value means no price could be obtained; the failure has already been logged.
type Resolver interface {
	ResolvePrice(ctx context.Context, url string) (*PriceResult, bool)
}

// Matcher is one entry of a selector fallback chain
type Matcher struct {
	// Label identifies the matcher in logs
	Label string
	// Selector is a goquery/cascadia CSS selector
	Selector string
}

// ByAttr matches <tag attr="value">
func ByAttr(tag, attr, value string) Matcher {
	return Matcher{
		Label:    tag + "[" + attr + "=" + value + "]",
		Selector: tag + `[` + attr + `="` + value + `"]`,
	}
}

// ByClass matches <tag class="... class ...">
func ByClass(tag, class string) Matcher {
	return Matcher{
		Label:    tag + "." + class,
		Selector: tag + "." + class,
	}
}

// SiteProfile holds the selector chains for one shop's product pages
type SiteProfile struct {
	NameMatchers []Matcher
	// NameFallback is scanned in document order when no name matcher hits
	NameFallback  string
	MinNameLength int

	PriceMatchers []Matcher
	// PriceFallback is scanned in document order when no price matcher hits
	PriceFallback string
	Currency      string
}

// DefaultProfile returns the chains for zalando.nl product pages.
// Semantic data-testid markers come first, then generated class names from older layouts.
func DefaultProfile() SiteProfile {
	return SiteProfile{
		NameMatchers: []Matcher{
			ByAttr("span", "data-testid", "product-name"),
			ByAttr("h1", "data-testid", "product-name"),
			ByClass("span", "EKabf7"),
			ByClass("h1", "OEhtt9"),
			ByClass("h1", "FZrqF6"),
			ByAttr("div", "data-testid", "product-name"),
		},
		NameFallback:  "h1, h2",
		MinNameLength: 10,
		PriceMatchers: []Matcher{
			ByAttr("span", "data-testid", "product-price"),
			ByClass("span", "sDq_FX"),
			ByClass("span", "VfpFfd"),
			ByClass("span", "QPDz2E"),
			ByAttr("p", "data-testid", "price"),
		},
		PriceFallback: "span, p, div",
		Currency:      "€",
	}
}
