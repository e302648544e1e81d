package scraper

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Extraction defaults. These were tuned against dozens of unrelated
// third-party site layouts; extraction is heuristic and lossy by design.
const (
	DefaultMinTitleLength  = 15
	DefaultMinTextLength   = 15
	DefaultCandidateTarget = 3
	defaultFallbackMinText = 80
	defaultFallbackMaxText = 2000
	maxSnippetLength       = 80
)

// ExtractorConfig tunes the extraction heuristics.
type ExtractorConfig struct {
	// MinTitleLength rejects candidates whose title is shorter, in runes.
	MinTitleLength int
	// MinTextLength is the floor for a text block to count as a description.
	MinTextLength int
	// CandidateTarget is how many containers a strategy tier must yield
	// before the cascade stops falling through to broader tiers.
	CandidateTarget int
}

// Extractor finds opportunity records in arbitrary HTML using a cascade of
// selector strategies evaluated in priority order.
type Extractor struct {
	cfg        ExtractorConfig
	strategies []containerStrategy
	clock      Clock
	logger     *zap.Logger
}

// NewExtractor constructs an Extractor with the configured thresholds.
func NewExtractor(cfg ExtractorConfig, clock Clock, logger *zap.Logger) *Extractor {
	if cfg.MinTitleLength <= 0 {
		cfg.MinTitleLength = DefaultMinTitleLength
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.CandidateTarget <= 0 {
		cfg.CandidateTarget = DefaultCandidateTarget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		cfg: cfg,
		strategies: []containerStrategy{
			{name: "semantic", find: semanticContainers},
			{name: "sectioning", find: sectioningContainers},
			{name: "text-block", find: textBlockContainers},
		},
		clock:  clock,
		logger: logger,
	}
}

// Extract parses html and returns one record per surviving candidate
// container, in document order, deduplicated by resolved URL. A parse
// failure returns an error the caller treats as zero opportunities.
func (e *Extractor) Extract(html []byte, keywords []string, sourceURL string) ([]Opportunity, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}

	containers := e.gatherContainers(doc)
	source := Domain(sourceURL)
	scrapedAt := e.clock.Now().UTC().Format(time.RFC3339)

	seen := make(map[string]struct{})
	var records []Opportunity
	for _, container := range containers {
		record, ok := e.extractOne(container, lowered, sourceURL)
		if !ok {
			continue
		}
		if _, dup := seen[record.URL]; dup {
			continue
		}
		seen[record.URL] = struct{}{}
		record.Source = source
		record.ScrapedAt = scrapedAt
		records = append(records, record)
	}

	e.logger.Debug("extraction complete",
		zap.String("source", source),
		zap.Int("containers", len(containers)),
		zap.Int("records", len(records)))
	return records, nil
}

// gatherContainers walks the strategy cascade, stopping at the first tier
// boundary where enough candidates have accumulated.
func (e *Extractor) gatherContainers(doc *goquery.Document) []*goquery.Selection {
	var containers []*goquery.Selection
	for _, strategy := range e.strategies {
		containers = append(containers, strategy.find(doc)...)
		if len(containers) >= e.cfg.CandidateTarget {
			break
		}
	}
	return containers
}

// extractOne applies the per-container rules: a heading-like element and an
// anchor must both be present, the title must clear the length floor and
// match a keyword, and the href must resolve to an absolute URL.
func (e *Extractor) extractOne(container *goquery.Selection, keywords []string, sourceURL string) (Opportunity, bool) {
	heading := container.Find("h1, h2, h3, h4, h5, strong, b, a").First()
	anchor := container.Find("a[href]").First()
	if heading.Length() == 0 || anchor.Length() == 0 {
		return Opportunity{}, false
	}

	title := normalizeText(heading.Text())
	if utf8.RuneCountInString(title) < e.cfg.MinTitleLength {
		return Opportunity{}, false
	}
	if !matchesKeyword(title, keywords) {
		return Opportunity{}, false
	}

	href, _ := anchor.Attr("href")
	link, err := ResolveURL(sourceURL, href)
	if err != nil || link == "" {
		return Opportunity{}, false
	}

	return Opportunity{
		Title:       title,
		URL:         link,
		Description: e.findDescription(container),
		Location:    findLocation(container),
		Deadline:    findDeadline(container),
	}, true
}

// findDescription picks the first text block inside the container whose
// length falls inside the plausible bounds.
func (e *Extractor) findDescription(container *goquery.Selection) string {
	var description string
	container.Find("p, .description, .summary, .excerpt").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeText(s.Text())
		n := utf8.RuneCountInString(text)
		if n > e.cfg.MinTextLength && n <= defaultFallbackMaxText {
			description = text
			return false
		}
		return true
	})
	return description
}

func matchesKeyword(title string, keywords []string) bool {
	lowered := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
