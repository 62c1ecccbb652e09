package models

import (
	"errors"
	"time"
)

// Product is one listing entry scraped from a search results page.
// Prices keep the formatting shown on the site.
type Product struct {
	Name     string  `json:"name"`
	Price    string  `json:"price"`
	OldPrice *string `json:"old_price,omitempty"`
	Link     string  `json:"link"`
}

// Batch holds the products of one crawl cycle in page order.
type Batch []Product

// Observation is a product as written to the store.
type Observation struct {
	Product
	ScrapedAt time.Time `json:"scraped_at"`
}

func NewProduct(name, link string, prices []string) Product {
	p := Product{
		Name: name,
		Link: link,
	}
	if len(prices) > 0 {
		p.Price = prices[0]
	}
	if len(prices) > 1 {
		old := prices[1]
		p.OldPrice = &old
	}
	return p
}

func (p *Product) HasOldPrice() bool {
	return p.OldPrice != nil
}

func (p *Product) Validate() error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}

	if p.Link == "" {
		errs = append(errs, errors.New("link is required"))
	}

	if p.Price == "" {
		errs = append(errs, errors.New("price is required"))
	}

	return errors.Join(errs...)
}

// Observe stamps the product with the local calendar date of t.
func (p Product) Observe(t time.Time) Observation {
	y, m, d := t.Date()
	return Observation{
		Product:   p,
		ScrapedAt: time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
	}
}
