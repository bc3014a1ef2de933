package crawler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	perrors "sjsage522/pricemonitor/pkg/errors"
)

// Extractor locates a product name and price in a product page
type Extractor struct {
	profile SiteProfile
}

// NewExtractor creates an extractor for the given site profile
func NewExtractor(profile SiteProfile) *Extractor {
	return &Extractor{profile: profile}
}

// createDocument creates a goquery document from a raw body
func (e *Extractor) createDocument(raw *RawDocument) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("HTML parse error: %w", err)
	}
	return doc, nil
}

// Extract returns the product name and normalized price of raw
func (e *Extractor) Extract(raw *RawDocument) (*PriceResult, error) {
	doc, err := e.createDocument(raw)
	if err != nil {
		return nil, perrors.NewParsing(perrors.ErrorTypeNameNotFound, perrors.StageName, raw.URL, "document could not be parsed", err)
	}

	name, ok := e.findName(doc)
	if !ok {
		return nil, perrors.NewParsing(perrors.ErrorTypeNameNotFound, perrors.StageName, raw.URL, "product name not found", nil)
	}

	priceText, ok := e.findPriceText(doc)
	if !ok {
		return nil, perrors.NewParsing(perrors.ErrorTypePriceNotFound, perrors.StagePrice, raw.URL, "price element not found", nil)
	}

	price, err := NormalizePrice(priceText)
	if err != nil {
		return nil, perrors.NewParsing(perrors.ErrorTypeInvalidNumber, perrors.StageNormalize, raw.URL, "price text is not a number", err)
	}

	return &PriceResult{
		URL:      raw.URL,
		Name:     name,
		Price:    price,
		RawPrice: priceText,
	}, nil
}

// findName applies the name chain, then the heading fallback
func (e *Extractor) findName(doc *goquery.Document) (string, bool) {
	for _, m := range e.profile.NameMatchers {
		if name := collapseSpace(doc.Find(m.Selector).First().Text()); name != "" {
			return name, true
		}
	}

	if e.profile.NameFallback == "" {
		return "", false
	}

	var name string
	doc.Find(e.profile.NameFallback).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) > e.profile.MinNameLength {
			name = collapseSpace(text)
			return false
		}
		return true
	})
	return name, name != ""
}

// findPriceText applies the price chain, then the generic element fallback
func (e *Extractor) findPriceText(doc *goquery.Document) (string, bool) {
	for _, m := range e.profile.PriceMatchers {
		if text, ok := e.firstPriceLike(doc.Find(m.Selector)); ok {
			return text, true
		}
	}

	if e.profile.PriceFallback == "" {
		return "", false
	}
	return e.firstPriceLike(doc.Find(e.profile.PriceFallback))
}

// firstPriceLike returns the trimmed text of the first selection element
// carrying the currency symbol and at least one digit
func (e *Extractor) firstPriceLike(sel *goquery.Selection) (string, bool) {
	var found string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if looksLikePrice(text, e.profile.Currency) {
			found = strings.TrimSpace(text)
			return false
		}
		return true
	})
	return found, found != ""
}

func looksLikePrice(text, currency string) bool {
	if !strings.Contains(text, currency) {
		return false
	}
	return strings.IndexFunc(text, unicode.IsDigit) >= 0
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
