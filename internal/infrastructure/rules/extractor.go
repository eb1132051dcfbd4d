package rules

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partpicker/pricesync/internal/domain"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extraction holds the raw text candidates pulled from one rendered page.
// Price candidates are in selector order; the caller tries to parse each in
// turn and the first parseable one wins. FallbackPrice is the full-text
// pattern match, tried only after all selectors fail.
type Extraction struct {
	PriceCandidates  []string
	FallbackPrice    string
	AvailabilityText string
}

// Extractor applies an ExtractionRule to rendered HTML.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract runs the rule's selector chains over the page and collects raw
// text candidates. It does no parsing or validation of the values.
func (e *Extractor) Extract(html string, rule domain.ExtractionRule) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{}, err
	}

	// Script and style bodies would pollute the full-text fallback.
	doc.Find("script,noscript,style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var ex Extraction

	for _, sel := range rule.PriceSelectors {
		text := selectionText(doc, sel)
		if text != "" {
			ex.PriceCandidates = append(ex.PriceCandidates, text)
		}
	}

	for _, sel := range rule.AvailabilitySelectors {
		if text := selectionText(doc, sel); text != "" {
			ex.AvailabilityText = text
			break
		}
	}

	if rule.FallbackPricePattern != "" {
		// Pattern validity is enforced at Register time.
		re := regexp.MustCompile(rule.FallbackPricePattern)
		body := collapseSpace(doc.Find("body").Text())
		if m := re.FindStringSubmatch(body); m != nil {
			if len(m) > 1 {
				ex.FallbackPrice = m[1]
			} else {
				ex.FallbackPrice = m[0]
			}
		}
	}

	return ex, nil
}

// selectionText returns the collapsed text of the first node matching sel.
// Meta tags carry their value in the content attribute instead of text.
func selectionText(doc *goquery.Document, sel string) string {
	node := doc.Find(sel).First()
	if node.Length() == 0 {
		return ""
	}
	if goquery.NodeName(node) == "meta" {
		return strings.TrimSpace(node.AttrOr("content", ""))
	}
	return collapseSpace(node.Text())
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
