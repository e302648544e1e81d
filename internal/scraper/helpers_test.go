package scraper

import (
	"context"
	"sync"
	"time"
)

// fakeClock is a manually-advanced clock for time-dependent tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSink counts alerts for breaker tests.
type fakeSink struct {
	mu       sync.Mutex
	messages []string
	levels   []AlertLevel
}

func (s *fakeSink) Alert(_ context.Context, message string, level AlertLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	s.levels = append(s.levels, level)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

const residencyFixture = `<!DOCTYPE html>
<html><body>
<article>
  <h2>Open Call: Mixed Media Residency 2025</h2>
  <a href="/apply">Apply now</a>
  <p>A fully funded residency for mixed media artists exploring unconventional materials and public installations.</p>
  <span class="location">Location: Berlin, Germany</span>
  <span class="deadline">Deadline: March 1, 2025</span>
</article>
</body></html>`
