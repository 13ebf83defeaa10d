package parser

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/maltedev/amazon-search-scraper/internal/models"
)

const (
	resultItemSelector = `[data-component-type="s-search-result"]`
	ratingSelector     = "span.a-icon-alt"
	reviewsSelector    = "a.s-underline-link-text span.a-size-base"
	imageSelector      = "img.s-image"
)

// Matched case-sensitively against the page title. Results pages are titled
// "Amazon.com : <keyword>", so their titles are never checked for phrases.
var defaultBlockPhrases = []string{
	"Something went wrong",
	"CAPTCHA",
	"Robot Check",
}

const resultsTitlePrefix = "Amazon.com :"

// Amazon serves its captcha interstitial with the plain "Amazon.com" title,
// so the form itself is checked as well.
var captchaSelectors = []string{
	"#captchacharacters",
	"form[action*='Captcha']",
}

var titleSelectors = []string{
	"h2.a-text-normal span",
	"span.a-text-normal",
	"h2 a span",
}

var placeholderImages = []string{
	"data:image/gif",
}

// fieldStrategy extracts one text field from a result item. An empty string
// means the strategy did not match.
type fieldStrategy func(item *goquery.Selection) string

// SearchExtractor parses Amazon search result pages.
type SearchExtractor struct {
	baseURL      *url.URL
	blockPhrases []string
	captcha      []cascadia.Selector
	items        cascadia.Selector
	title        []fieldStrategy
	rating       cascadia.Selector
	reviews      cascadia.Selector
	image        cascadia.Selector
	logger       *slog.Logger
}

// NewSearchExtractor creates an extractor that resolves relative image URLs
// against baseURL. An unparsable or empty baseURL leaves them as-is.
func NewSearchExtractor(baseURL string, logger *slog.Logger) *SearchExtractor {
	if logger == nil {
		logger = slog.Default()
	}

	e := &SearchExtractor{
		blockPhrases: defaultBlockPhrases,
		items:        cascadia.MustCompile(resultItemSelector),
		rating:       cascadia.MustCompile(ratingSelector),
		reviews:      cascadia.MustCompile(reviewsSelector),
		image:        cascadia.MustCompile(imageSelector),
		logger:       logger.With("component", "search_extractor"),
	}

	if u, err := url.Parse(baseURL); err == nil && u.IsAbs() {
		e.baseURL = u
	}

	for _, s := range captchaSelectors {
		e.captcha = append(e.captcha, cascadia.MustCompile(s))
	}

	for _, s := range titleSelectors {
		e.title = append(e.title, textOf(cascadia.MustCompile(s)))
	}

	return e
}

// Extract classifies the page and returns the presentable records in
// document order. It never fails: unparsable input yields an empty outcome.
func (e *SearchExtractor) Extract(html string) *models.SearchOutcome {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("failed to parse HTML", "error", err)
		return &models.SearchOutcome{Class: models.ValidResults, Products: make([]models.ProductRecord, 0)}
	}

	if reason, blocked := e.Classify(doc); blocked {
		e.logger.Warn("CAPTCHA or error page detected", "reason", reason)
		return models.NewBlockedOutcome(reason)
	}

	items := doc.FindMatcher(e.items)
	outcome := &models.SearchOutcome{
		Class:     models.ValidResults,
		Products:  make([]models.ProductRecord, 0, items.Length()),
		ItemsSeen: items.Length(),
	}

	items.Each(func(i int, item *goquery.Selection) {
		record := e.extractItem(item)
		if !record.IsPresentable() || isPlaceholder(record.ImageURL) {
			outcome.Discarded++
			return
		}
		outcome.Products = append(outcome.Products, record)
	})

	e.logger.Debug("extracted search results",
		"items", outcome.ItemsSeen,
		"products", len(outcome.Products),
		"discarded", outcome.Discarded,
	)

	return outcome
}

// Classify reports whether doc is a blocking or error page, and why.
func (e *SearchExtractor) Classify(doc *goquery.Document) (string, bool) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if !strings.HasPrefix(title, resultsTitlePrefix) {
		for _, phrase := range e.blockPhrases {
			if strings.Contains(title, phrase) {
				return "title contains " + strconv.Quote(phrase), true
			}
		}
	}

	for i, sel := range e.captcha {
		if doc.FindMatcher(sel).Length() > 0 {
			return "captcha form " + captchaSelectors[i], true
		}
	}

	return "", false
}

func (e *SearchExtractor) extractItem(item *goquery.Selection) models.ProductRecord {
	return models.ProductRecord{
		Title:    firstMatch(item, e.title),
		Rating:   e.extractRating(item),
		Reviews:  e.extractReviews(item),
		ImageURL: e.extractImage(item),
	}
}

func (e *SearchExtractor) extractRating(item *goquery.Selection) string {
	el := item.FindMatcher(e.rating).First()
	if el.Length() == 0 {
		return models.RatingUnknown
	}

	// "4.5 out of 5 stars"
	fields := strings.Fields(el.Text())
	if len(fields) == 0 {
		return models.RatingUnknown
	}
	return fields[0]
}

func (e *SearchExtractor) extractReviews(item *goquery.Selection) int {
	el := item.FindMatcher(e.reviews).First()
	if el.Length() == 0 {
		return 0
	}
	return ParseReviewCount(el.Text())
}

func (e *SearchExtractor) extractImage(item *goquery.Selection) string {
	src, ok := item.FindMatcher(e.image).First().Attr("src")
	if !ok {
		return ""
	}
	return e.resolve(strings.TrimSpace(src))
}

// resolve mirrors what a browser reports for img.src: the attribute resolved
// against the document URL. Unparsable sources are dropped.
func (e *SearchExtractor) resolve(src string) string {
	if src == "" {
		return ""
	}

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}

	if e.baseURL == nil || ref.IsAbs() {
		return ref.String()
	}
	return e.baseURL.ResolveReference(ref).String()
}

// ParseReviewCount parses review counts such as "1,234" or "(1.234)".
// Anything without leading digits yields 0.
func ParseReviewCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "()")
	text = strings.NewReplacer(",", "", ".", "").Replace(text)

	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	count, err := strconv.Atoi(text[:end])
	if err != nil {
		return 0
	}
	return count
}

func isPlaceholder(src string) bool {
	for _, p := range placeholderImages {
		if strings.Contains(src, p) {
			return true
		}
	}
	return false
}

func textOf(sel cascadia.Selector) fieldStrategy {
	return func(item *goquery.Selection) string {
		return strings.TrimSpace(item.FindMatcher(sel).First().Text())
	}
}

func firstMatch(item *goquery.Selection, strategies []fieldStrategy) string {
	for _, strategy := range strategies {
		if v := strategy(item); v != "" {
			return v
		}
	}
	return ""
}
