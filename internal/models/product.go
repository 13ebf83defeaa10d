package models

// RatingUnknown is reported when a result item carries no star rating.
const RatingUnknown = "N/A"

// ProductRecord is a single product entry scraped from a search results page.
type ProductRecord struct {
	Title    string `json:"title"`
	Rating   string `json:"rating"`
	Reviews  int    `json:"reviews"`
	ImageURL string `json:"imageUrl"`
}

// IsPresentable reports whether the record carries the two fields a product
// card cannot be rendered without.
func (p *ProductRecord) IsPresentable() bool {
	return p.Title != "" && p.ImageURL != ""
}

// PageClass is the classification of a fetched search page.
type PageClass int

const (
	ValidResults PageClass = iota
	Blocked
)

func (c PageClass) String() string {
	switch c {
	case ValidResults:
		return "results"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// SearchOutcome is the result of extracting one search page.
type SearchOutcome struct {
	Class     PageClass       `json:"-"`
	Reason    string          `json:"reason,omitempty"`
	Products  []ProductRecord `json:"products"`
	ItemsSeen int             `json:"items_seen"`
	Discarded int             `json:"discarded"`
}

// NewBlockedOutcome returns an outcome for an interstitial or error page.
func NewBlockedOutcome(reason string) *SearchOutcome {
	return &SearchOutcome{
		Class:    Blocked,
		Reason:   reason,
		Products: make([]ProductRecord, 0),
	}
}

// Status is the wire name of the outcome class.
func (o *SearchOutcome) Status() string {
	return o.Class.String()
}
