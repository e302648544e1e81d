package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// containerStrategy is one tier of the candidate-container cascade. Each
// strategy is a pure function from document to candidate list so the
// heuristics can be tested in isolation.
type containerStrategy struct {
	name string
	find func(doc *goquery.Document) []*goquery.Selection
}

// semanticSelectors name the elements and class patterns that third-party
// listing pages most often wrap individual opportunities in.
var semanticSelectors = strings.Join([]string{
	"article", ".job-listing", ".opportunity", ".post", ".card",
	".listing", ".job", ".open-call", ".residency", ".grant",
	"div[class*=job]", "div[class*=opp]", "div[class*=listing]",
	".item", ".event", ".entry", ".content-item",
	"li.listing", ".result",
}, ", ")

// semanticContainers is the highest-precision tier: known listing markup.
func semanticContainers(doc *goquery.Document) []*goquery.Selection {
	return splitSelection(doc.Find(semanticSelectors))
}

// sectioningContainers falls back to generic sectioning elements when the
// page uses no recognizable listing markup.
func sectioningContainers(doc *goquery.Document) []*goquery.Selection {
	return splitSelection(doc.Find("section, li, main > div"))
}

// textBlockContainers is the broadest tier: any div or section whose text
// is long enough to be a listing but short enough not to be the whole page.
func textBlockContainers(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		n := utf8.RuneCountInString(normalizeText(s.Text()))
		if n >= defaultFallbackMinText && n <= defaultFallbackMaxText {
			out = append(out, s)
		}
	})
	return out
}

func splitSelection(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

var (
	locationClassTerms = []string{"location", "place", "city", "state"}
	deadlineClassTerms = []string{"deadline", "due", "date"}

	locationPattern = regexp.MustCompile(`(?i)\b(?:location|based in|city|state)\b\s*[:\-]?\s*`)
	deadlinePattern = regexp.MustCompile(`(?i)\b(?:deadline|due date|due|apply by|closes|closing date)\b\s*[:\-]?\s*`)
)

// findLocation is a best-effort scan: annotated elements first, then a
// keyword match over the container's text. Returns "" when nothing looks
// like a location.
func findLocation(container *goquery.Selection) string {
	if text := classAnnotatedText(container, ".location, .place", locationClassTerms); text != "" {
		return text
	}
	return snippetAfter(container, locationPattern)
}

// findDeadline mirrors findLocation for date-related phrases.
func findDeadline(container *goquery.Selection) string {
	if text := classAnnotatedText(container, ".date, .deadline", deadlineClassTerms); text != "" {
		return text
	}
	return snippetAfter(container, deadlinePattern)
}

// classAnnotatedText returns the first matching element's text when it
// also mentions one of the expected terms, guarding against decorative
// elements that reuse the class name.
func classAnnotatedText(container *goquery.Selection, selector string, terms []string) string {
	var found string
	container.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeText(s.Text())
		lowered := strings.ToLower(text)
		for _, term := range terms {
			if strings.Contains(lowered, term) {
				found = text
				return false
			}
		}
		return true
	})
	return found
}

// snippetAfter captures a short run of text following a pattern match in
// the container's flattened text.
func snippetAfter(container *goquery.Selection, pattern *regexp.Regexp) string {
	text := normalizeText(container.Text())
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	snippet := text[loc[0]:]
	if utf8.RuneCountInString(snippet) > maxSnippetLength {
		runes := []rune(snippet)
		snippet = string(runes[:maxSnippetLength])
	}
	return strings.TrimSpace(snippet)
}
