// Package deck ties the source registry, aggregator, cache and scheduler
// together behind a single configuration entry point.
package deck

import (
	"context"
	"slices"
	"sync"
	"time"

	"newsdeck/aggregator"
	"newsdeck/cache"
	"newsdeck/config"
	"newsdeck/models"
	"newsdeck/registry"
	"newsdeck/scheduler"

	log "github.com/sirupsen/logrus"
)

type settings struct {
	sources      []models.FeedSource
	fetchLimit   int
	timeout      time.Duration
	displayLimit int
	interval     time.Duration
}

// fetchChanged reports whether other would produce a different report
func (s settings) fetchChanged(other settings) bool {
	return s.fetchLimit != other.fetchLimit ||
		s.timeout != other.timeout ||
		!slices.Equal(sortedUrls(s.sources), sortedUrls(other.sources))
}

func sortedUrls(sources []models.FeedSource) []string {
	urls := registry.Urls(sources)
	slices.Sort(urls)
	return urls
}

type Deck struct {
	aggregator *aggregator.Aggregator
	cache      *cache.Cache
	scheduler  *scheduler.Scheduler

	mu       sync.Mutex
	settings settings
	// version is bumped whenever a setting that affects fetching changes
	version     uint64
	applied     bool
	subscribers []func(models.AggregationReport)
}

func New(ctx context.Context, client aggregator.FeedClient, cache *cache.Cache, opts ...scheduler.Option) *Deck {
	d := &Deck{
		aggregator: aggregator.New(client),
		cache:      cache,
	}
	d.scheduler = scheduler.New(ctx, d.cycle, opts...)
	return d
}

// Apply validates cfg and makes it the active configuration. A fetch is
// started when the sources, fetch limit or timeout changed, when the cache
// no longer matches the sources, or when the scheduler is not running yet.
// A change of the refresh interval restarts the scheduler. Changing only the
// display limit is served from the cache.
func (d *Deck) Apply(cfg config.Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	sources, err := registry.Normalize(cfg.Feeds)
	if err != nil {
		return err
	}

	next := settings{
		sources:      sources,
		fetchLimit:   cfg.FetchLimit,
		timeout:      cfg.SourceTimeout,
		displayLimit: cfg.MaxArticles,
		interval:     cfg.Interval(),
	}

	d.mu.Lock()
	prev := d.settings
	first := !d.applied
	fetchChanged := first || prev.fetchChanged(next)
	if fetchChanged {
		d.version++
	}
	d.settings = next
	d.applied = true
	d.mu.Unlock()

	restart := fetchChanged ||
		prev.interval != next.interval ||
		d.scheduler.State() == scheduler.Stopped ||
		d.cache.IsStale(sources)

	log.WithFields(log.Fields{
		"sources":       len(sources),
		"fetch_limit":   next.fetchLimit,
		"display_limit": next.displayLimit,
		"interval":      next.interval,
		"restart":       restart,
	}).Info("Applied configuration")

	if !restart {
		return nil
	}
	return d.scheduler.Start(next.interval)
}

// Articles returns up to limit cached articles, or the configured display
// limit when limit <= 0.
func (d *Deck) Articles(limit int) []models.Article {
	if limit <= 0 {
		limit = d.DisplayLimit()
	}
	return d.cache.ReadFor(limit)
}

func (d *Deck) DisplayLimit() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.displayLimit
}

func (d *Deck) Sources() []models.FeedSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.settings.sources)
}

func (d *Deck) Report() (models.AggregationReport, bool) {
	return d.cache.Report()
}

// Refresh starts a cycle now. Returns false when one is already running.
func (d *Deck) Refresh() bool {
	return d.scheduler.TriggerManualRefresh()
}

func (d *Deck) State() scheduler.State {
	return d.scheduler.State()
}

// Subscribe registers fn to be called with every new report
func (d *Deck) Subscribe(fn func(models.AggregationReport)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// Stop stops scheduling and waits for the running cycle, if any
func (d *Deck) Stop() {
	d.scheduler.Stop()
	d.scheduler.Wait()
}

// Wait blocks until the running cycle, if any, has delivered
func (d *Deck) Wait() {
	d.scheduler.Wait()
}

func (d *Deck) cycle(ctx context.Context) {
	for {
		d.mu.Lock()
		current := d.settings
		version := d.version
		d.mu.Unlock()

		report, err := d.aggregator.FetchAll(ctx, current.sources, current.fetchLimit, current.timeout)
		if err != nil {
			log.Errorf("Aggregation failed: %v", err)
			return
		}
		if ctx.Err() != nil {
			log.Warn("Discarding report from cancelled cycle")
			return
		}

		d.mu.Lock()
		if version != d.version {
			d.mu.Unlock()
			log.Info("Sources changed during fetch, fetching again")
			continue
		}
		subscribers := slices.Clone(d.subscribers)
		d.mu.Unlock()

		d.cache.Store(report, current.sources)
		for _, fn := range subscribers {
			fn(report)
		}
		return
	}
}
