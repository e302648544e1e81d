package scraper

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxDescription bounds stored description text.
const DefaultMaxDescription = 500

// Verifier filters malformed records, bounds oversized text, fingerprints
// each record, and deduplicates by URL. Verification is idempotent:
// running it twice yields the same output as running it once.
type Verifier struct {
	maxDescription int
	hasher         Hasher
	logger         *zap.Logger
}

// NewVerifier constructs a Verifier.
func NewVerifier(maxDescription int, hasher Hasher, logger *zap.Logger) *Verifier {
	if maxDescription <= 0 {
		maxDescription = DefaultMaxDescription
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{maxDescription: maxDescription, hasher: hasher, logger: logger}
}

// Verify returns the cleaned subset of records, preserving input order and
// keeping the first occurrence of each URL. Rejected records are dropped
// silently; a malformed record is not an error.
func (v *Verifier) Verify(records []Opportunity) []Opportunity {
	verified := make([]Opportunity, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, record := range records {
		record.Title = normalizeText(record.Title)
		if record.Title == "" || record.URL == "" {
			continue
		}
		if !strings.HasPrefix(record.URL, "http") {
			continue
		}
		if _, dup := seen[record.URL]; dup {
			continue
		}
		seen[record.URL] = struct{}{}

		record.Description = truncate(record.Description, v.maxDescription)
		record.Fingerprint = v.fingerprint(record)
		verified = append(verified, record)
	}
	return verified
}

// fingerprint hashes title|url|deadline as a duplicate-detection signal
// independent of URL identity. Two distinct URLs carrying the exact same
// posting share a fingerprint.
func (v *Verifier) fingerprint(record Opportunity) string {
	data := record.Title + "|" + record.URL + "|" + record.Deadline
	digest, err := v.hasher.Hash([]byte(data))
	if err != nil {
		v.logger.Warn("fingerprint hash failed", zap.String("url", record.URL), zap.Error(err))
		return ""
	}
	return digest
}

// truncate bounds s to limit runes, marking the cut with an ellipsis. A
// string already carrying the marker at exactly the limit passes through
// unchanged, which is what keeps Verify idempotent.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
