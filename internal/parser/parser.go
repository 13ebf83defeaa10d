package parser

import (
	"github.com/maltedev/amazon-search-scraper/internal/models"
)

// Parser turns a raw search results page into product records.
type Parser interface {
	Extract(html string) *models.SearchOutcome
}
