// Package cache holds the most recent aggregation report for display
package cache

import (
	"sync/atomic"

	"newsdeck/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// entry is never mutated after it is published
type entry struct {
	report  models.AggregationReport
	sources []models.FeedSource
	urls    []string
}

// Cache is written by one aggregation cycle at a time and read freely.
// The zero value is ready to use.
type Cache struct {
	current atomic.Pointer[entry]
}

func New() *Cache {
	return &Cache{}
}

// Store replaces the cached report and the sources it was computed from.
// The cache takes ownership of report.
func (c *Cache) Store(report models.AggregationReport, sources []models.FeedSource) {
	sourcesCopy := append([]models.FeedSource(nil), sources...)

	c.current.Store(&entry{
		report:  report,
		sources: sourcesCopy,
		urls:    sourceUrls(sourcesCopy),
	})

	log.WithFields(log.Fields{
		"articles": len(report.Articles),
		"failed":   len(report.FailedSources),
	}).Debug("Stored aggregation report")
}

// ReadFor returns up to displayLimit of the cached articles, newest first.
// It never triggers a fetch.
func (c *Cache) ReadFor(displayLimit int) []models.Article {
	e := c.current.Load()
	if e == nil || displayLimit <= 0 {
		return []models.Article{}
	}

	articles := e.report.Articles
	if len(articles) > displayLimit {
		articles = articles[:displayLimit]
	}

	return append([]models.Article{}, articles...)
}

// Report returns the cached report, if any
func (c *Cache) Report() (models.AggregationReport, bool) {
	e := c.current.Load()
	if e == nil {
		return models.AggregationReport{}, false
	}
	return e.report, true
}

// Sources returns the source set the cached report was computed from
func (c *Cache) Sources() []models.FeedSource {
	e := c.current.Load()
	if e == nil {
		return nil
	}
	return append([]models.FeedSource(nil), e.sources...)
}

// IsStale reports whether the cached report was computed from a different
// set of source URLs than currentSources. An empty cache is always stale.
func (c *Cache) IsStale(currentSources []models.FeedSource) bool {
	e := c.current.Load()
	if e == nil {
		return true
	}

	current := sourceUrls(currentSources)
	return len(current) != len(e.urls) || !lo.Every(e.urls, current)
}

func sourceUrls(sources []models.FeedSource) []string {
	return lo.Uniq(lo.Map(sources, func(s models.FeedSource, _ int) string {
		return s.Url
	}))
}
