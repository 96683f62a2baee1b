// Package registry validates and normalizes the configured feed sources
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"newsdeck/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Normalize validates raw sources and returns them de-duplicated by URL in
// first-seen order. The first invalid source fails the whole call.
func Normalize(raw []models.RawSource) ([]models.FeedSource, error) {
	sources := make([]models.FeedSource, 0, len(raw))

	for i, r := range raw {
		feedUrl := strings.TrimSpace(r.Url)
		if err := ValidateUrl(feedUrl); err != nil {
			return nil, WithField(err, fieldName(i))
		}

		id := strings.TrimSpace(r.Id)
		if id == "" {
			id = SourceId(feedUrl)
		}

		sources = append(sources, models.FeedSource{
			Id:          id,
			Url:         feedUrl,
			DisplayName: strings.TrimSpace(r.Name),
		})
	}

	return lo.UniqBy(sources, func(s models.FeedSource) string {
		return s.Url
	}), nil
}

// ValidateUrl checks that a feed URL is an absolute http(s) URL
func ValidateUrl(feedUrl string) error {
	if feedUrl == "" {
		return &models.ValidationError{Reason: "url must not be empty"}
	}

	u, err := url.ParseRequestURI(feedUrl)
	if err != nil {
		return &models.ValidationError{Reason: "invalid feed url: " + err.Error()}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &models.ValidationError{Reason: "unsupported scheme: " + u.Scheme}
	}

	if u.Host == "" {
		return &models.ValidationError{Reason: "feed url has no host"}
	}

	return nil
}

// WithField sets the field of a ValidationError; other errors are returned
// unchanged
func WithField(err error, field string) error {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		validationErr.Field = field
	}
	return err
}

// SourceId derives a stable identifier from a feed URL
func SourceId(feedUrl string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedUrl)).String()
}

// Urls returns the URLs of the given sources in order
func Urls(sources []models.FeedSource) []string {
	return lo.Map(sources, func(s models.FeedSource, _ int) string {
		return s.Url
	})
}

func fieldName(i int) string {
	return fmt.Sprintf("feeds[%d].url", i)
}
