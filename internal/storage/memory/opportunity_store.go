// Package memory provides an in-memory opportunity store for tests and
// deployments without a database.
package memory

import (
	"context"
	"sync"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

// OpportunityStore keeps records in a map keyed by URL.
type OpportunityStore struct {
	mu      sync.Mutex
	records map[string]scraper.Opportunity
}

// NewOpportunityStore creates an empty store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{records: make(map[string]scraper.Opportunity)}
}

// SaveOpportunities upserts the batch by URL.
func (s *OpportunityStore) SaveOpportunities(_ context.Context, records []scraper.Opportunity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.records[record.URL] = record
	}
	return len(records), nil
}

// List returns a copy of all stored records.
func (s *OpportunityStore) List() []scraper.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scraper.Opportunity, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	return out
}

// Len reports how many distinct URLs are stored.
func (s *OpportunityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
