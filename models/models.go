package models

import (
	"net/url"
	"time"
)

// FeedSource is one configured origin. Identity is the exact URL.
type FeedSource struct {
	Id          string `json:"id"`
	Url         string `json:"url"`
	DisplayName string `json:"displayName,omitempty"`
}

// RawSource is a feed source as it comes from configuration, before validation
type RawSource struct {
	Id   string `json:"id,omitempty" toml:"id,omitempty"`
	Url  string `json:"url" toml:"url"`
	Name string `json:"name,omitempty" toml:"name,omitempty"`
}

// Article is a merged feed entry ready for display
type Article struct {
	Id           string     `json:"id"`
	Title        string     `json:"title"`
	Link         string     `json:"link"`
	PublishedAt  *time.Time `json:"publishedAt"`
	Summary      string     `json:"summary,omitempty"`
	ThumbnailUrl string     `json:"thumbnailUrl,omitempty"`
	SourceName   string     `json:"sourceName"`
}

// RawItem is an entry as returned by a feed client. Published is left
// unparsed; the aggregator owns timestamp normalization.
type RawItem struct {
	Title        string
	Link         string
	Published    string
	Summary      string
	ThumbnailUrl string
}

// FeedDocument is the parsed result of fetching one feed
type FeedDocument struct {
	FeedTitle string
	Items     []RawItem
}

// FetchOutcome is the result of fetching a single source. Exactly one of
// Items (success) or Reason (failure) is meaningful, as reported by Ok.
type FetchOutcome struct {
	Source FeedSource
	Items  []Article
	Reason ErrorKind
	Err    error
}

func Success(source FeedSource, items []Article) FetchOutcome {
	return FetchOutcome{Source: source, Items: items}
}

func Failure(source FeedSource, err error) FetchOutcome {
	return FetchOutcome{Source: source, Reason: KindOf(err), Err: err}
}

func (o FetchOutcome) Ok() bool {
	return o.Reason == ""
}

// SourceFailure records why a source contributed nothing to a report
type SourceFailure struct {
	Source FeedSource `json:"source"`
	Reason ErrorKind  `json:"reason"`
	Error  string     `json:"error,omitempty"`
}

// AggregationReport is the outcome of one aggregation cycle. Values are
// immutable once produced; consumers must not modify the slices.
type AggregationReport struct {
	Articles      []Article       `json:"articles"`
	FailedSources []SourceFailure `json:"failedSources"`
	FetchedAt     time.Time       `json:"fetchedAt"`
}

// ResolvedName is the label used for articles from this source: the
// configured display name, or the URL host when none is set.
func (s FeedSource) ResolvedName() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if u, err := url.Parse(s.Url); err == nil && u.Host != "" {
		return u.Host
	}
	return s.Url
}
