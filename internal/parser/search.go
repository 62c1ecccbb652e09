package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/search-price-tracker/internal/models"
)

const (
	DefaultResultSelector = "div[data-component-type='s-search-result']"
	DefaultTitleSelector  = "h2 > a"
	DefaultPriceSelector  = "span.a-price > span.a-offscreen"

	// Newer result layouts wrap the heading anchor in an extra element.
	fallbackTitleSelector = "h2 a"
)

var (
	ErrMissingName  = errors.New("product name not found")
	ErrMissingLink  = errors.New("product link not found")
	ErrMissingPrice = errors.New("product price not found")
)

// EntryError reports why a single result block could not be turned into a product.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("result %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// EntryResult is the outcome for one result block. Exactly one of Product or Err is set.
type EntryResult struct {
	Index   int
	Product *models.Product
	Err     error
}

// Extraction is the parsed view of one search results page.
type Extraction struct {
	Empty   bool
	Entries []EntryResult
}

func (e *Extraction) Products() []models.Product {
	products := make([]models.Product, 0, len(e.Entries))
	for _, entry := range e.Entries {
		if entry.Product != nil {
			products = append(products, *entry.Product)
		}
	}
	return products
}

func (e *Extraction) Faults() []error {
	var faults []error
	for _, entry := range e.Entries {
		if entry.Err != nil {
			faults = append(faults, entry.Err)
		}
	}
	return faults
}

type Selectors struct {
	Result string
	Title  string
	Price  string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Result: DefaultResultSelector,
		Title:  DefaultTitleSelector,
		Price:  DefaultPriceSelector,
	}
}

// SearchParser extracts product listings from search result markup.
type SearchParser struct {
	baseURL   *url.URL
	selectors Selectors
}

func NewSearchParser(baseURL string, selectors Selectors) (*SearchParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	defaults := DefaultSelectors()
	if selectors.Result == "" {
		selectors.Result = defaults.Result
	}
	if selectors.Title == "" {
		selectors.Title = defaults.Title
	}
	if selectors.Price == "" {
		selectors.Price = defaults.Price
	}

	return &SearchParser{
		baseURL:   base,
		selectors: selectors,
	}, nil
}

func (p *SearchParser) Extract(markup string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	blocks := doc.Find(p.selectors.Result)
	if blocks.Length() == 0 {
		return &Extraction{Empty: true}, nil
	}

	extraction := &Extraction{
		Entries: make([]EntryResult, 0, blocks.Length()),
	}

	blocks.Each(func(i int, s *goquery.Selection) {
		product, err := p.extractEntry(s)
		if err != nil {
			extraction.Entries = append(extraction.Entries, EntryResult{
				Index: i,
				Err:   &EntryError{Index: i, Err: err},
			})
			return
		}
		extraction.Entries = append(extraction.Entries, EntryResult{
			Index:   i,
			Product: product,
		})
	})

	return extraction, nil
}

func (p *SearchParser) extractEntry(s *goquery.Selection) (*models.Product, error) {
	anchor := p.titleAnchor(s)
	if anchor.Length() == 0 {
		return nil, ErrMissingName
	}

	name := strings.TrimSpace(anchor.Text())
	if name == "" {
		return nil, ErrMissingName
	}

	href, exists := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !exists || href == "" {
		return nil, ErrMissingLink
	}

	link, err := p.resolve(href)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingLink, err)
	}

	prices := p.extractPrices(s)
	if len(prices) == 0 {
		return nil, ErrMissingPrice
	}

	product := models.NewProduct(name, link, prices)
	return &product, nil
}

func (p *SearchParser) titleAnchor(s *goquery.Selection) *goquery.Selection {
	anchor := s.Find(p.selectors.Title).First()
	if anchor.Length() == 0 && p.selectors.Title == DefaultTitleSelector {
		anchor = s.Find(fallbackTitleSelector).First()
	}
	return anchor
}

func (p *SearchParser) extractPrices(s *goquery.Selection) []string {
	var prices []string
	s.Find(p.selectors.Price).Each(func(i int, el *goquery.Selection) {
		if text := strings.TrimSpace(el.Text()); text != "" {
			prices = append(prices, text)
		}
	})
	return prices
}

func (p *SearchParser) resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return p.baseURL.ResolveReference(ref).String(), nil
}

// ResolveLink joins a scraped href onto the site base URL.
func ResolveLink(baseURL, href string) (string, error) {
	p, err := NewSearchParser(baseURL, Selectors{})
	if err != nil {
		return "", err
	}
	return p.resolve(href)
}
