// Package aggregator fetches all configured feed sources concurrently and
// merges the results into a single time-ordered report.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"newsdeck/models"
	"newsdeck/registry"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// FeedClient retrieves and parses a single feed. Implementations should
// honour ctx cancellation; the aggregator stops waiting at the deadline
// either way.
type FeedClient interface {
	Fetch(ctx context.Context, url string) (models.FeedDocument, error)
}

type Aggregator struct {
	client FeedClient
	now    func() time.Time
}

func New(client FeedClient) *Aggregator {
	return &Aggregator{client: client, now: time.Now}
}

// FetchAll fetches every source in parallel, each bounded by
// timeoutPerSource, and returns the merged articles sorted newest first and
// truncated to limit. Source failures are reported in the result; only
// invalid arguments produce an error.
func (a *Aggregator) FetchAll(ctx context.Context, sources []models.FeedSource, limit int, timeoutPerSource time.Duration) (models.AggregationReport, error) {
	if limit < 1 {
		return models.AggregationReport{}, models.NewValidationError("limit", "must be at least 1, got %d", limit)
	}
	if timeoutPerSource <= 0 {
		return models.AggregationReport{}, models.NewValidationError("timeoutPerSource", "must be positive, got %s", timeoutPerSource)
	}
	for i, source := range sources {
		if err := registry.ValidateUrl(source.Url); err != nil {
			return models.AggregationReport{}, registry.WithField(err, fmt.Sprintf("sources[%d].url", i))
		}
	}

	sources = lo.UniqBy(sources, func(s models.FeedSource) string {
		return s.Url
	})

	start := a.now()
	outcomes := a.fetchOutcomes(ctx, sources, timeoutPerSource)
	report := Merge(outcomes, limit)
	report.FetchedAt = a.now()

	aggregationCycles.Inc()
	aggregatedArticles.Set(float64(len(report.Articles)))

	log.WithFields(log.Fields{
		"sources":  len(sources),
		"failed":   len(report.FailedSources),
		"articles": len(report.Articles),
		"duration": report.FetchedAt.Sub(start),
	}).Info("Aggregation cycle complete")

	return report, nil
}

// fetchOutcomes fans out one fetch per source. Outcomes are stored by source
// index so the merge never depends on completion order.
func (a *Aggregator) fetchOutcomes(ctx context.Context, sources []models.FeedSource, timeout time.Duration) []models.FetchOutcome {
	outcomes := make([]models.FetchOutcome, len(sources))

	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source models.FeedSource) {
			defer wg.Done()
			outcomes[i] = a.fetchSource(ctx, source, timeout)
		}(i, source)
	}
	wg.Wait()

	return outcomes
}

type fetchResult struct {
	doc models.FeedDocument
	err error
}

func (a *Aggregator) fetchSource(ctx context.Context, source models.FeedSource, timeout time.Duration) models.FetchOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		sourceFetchDuration.Observe(time.Since(start).Seconds())
	}()

	// Buffered so a client that ignores ctx can still finish and exit
	resultChan := make(chan fetchResult, 1)
	go func() {
		doc, err := a.client.Fetch(ctx, source.Url)
		resultChan <- fetchResult{doc: doc, err: err}
	}()

	var result fetchResult
	select {
	case result = <-resultChan:
	case <-ctx.Done():
		result = fetchResult{err: &models.FetchError{Kind: models.TimeoutErrorKind, Url: source.Url, Err: ctx.Err()}}
	}

	if result.err != nil {
		outcome := models.Failure(source, result.err)
		sourceFetches.WithLabelValues(string(outcome.Reason)).Inc()
		log.WithFields(log.Fields{
			"url":   source.Url,
			"kind":  outcome.Reason,
			"error": result.err,
		}).Warn("Feed source failed")
		return outcome
	}

	sourceFetches.WithLabelValues("success").Inc()
	return models.Success(source, toArticles(source, result.doc.Items))
}

func toArticles(source models.FeedSource, items []models.RawItem) []models.Article {
	name := source.ResolvedName()

	return lo.Map(items, func(item models.RawItem, _ int) models.Article {
		return models.Article{
			Id:           ArticleId(source.Url, item),
			Title:        item.Title,
			Link:         item.Link,
			PublishedAt:  ParseTimestamp(item.Published),
			Summary:      item.Summary,
			ThumbnailUrl: item.ThumbnailUrl,
			SourceName:   name,
		}
	})
}

// ArticleId is stable across cycles for the same link, so read state
// survives refreshes.
func ArticleId(sourceUrl string, item models.RawItem) string {
	key := item.Link
	if key == "" {
		key = sourceUrl + "#" + item.Title + "#" + item.Published
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Merge concatenates successful outcomes in order, sorts them newest first
// and truncates to limit. Articles without a timestamp go last. Sorting is
// stable, so ties keep their concatenation order.
func Merge(outcomes []models.FetchOutcome, limit int) models.AggregationReport {
	articles := []models.Article{}
	failed := []models.SourceFailure{}

	for _, outcome := range outcomes {
		if !outcome.Ok() {
			failure := models.SourceFailure{Source: outcome.Source, Reason: outcome.Reason}
			if outcome.Err != nil {
				failure.Error = outcome.Err.Error()
			}
			failed = append(failed, failure)
			continue
		}
		articles = append(articles, outcome.Items...)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return newerThan(articles[i], articles[j])
	})

	// Truncate strictly after sorting
	if len(articles) > limit {
		articles = append([]models.Article(nil), articles[:limit]...)
	}

	return models.AggregationReport{
		Articles:      articles,
		FailedSources: failed,
	}
}

func newerThan(a, b models.Article) bool {
	switch {
	case a.PublishedAt == nil:
		return false
	case b.PublishedAt == nil:
		return true
	default:
		return a.PublishedAt.After(*b.PublishedAt)
	}
}
