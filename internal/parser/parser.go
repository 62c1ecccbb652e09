package parser

// Extractor turns one page of search result markup into product entries.
type Extractor interface {
	Extract(markup string) (*Extraction, error)
}

var _ Extractor = (*SearchParser)(nil)
