package registry_test

import (
	"errors"
	"newsdeck/models"
	"newsdeck/registry"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      []models.RawSource
		expected []string
		wantErr  bool
	}{
		{
			name:     "empty input",
			raw:      nil,
			expected: []string{},
		},
		{
			name: "keeps order",
			raw: []models.RawSource{
				{Url: "https://b.example/rss"},
				{Url: "https://a.example/rss"},
			},
			expected: []string{"https://b.example/rss", "https://a.example/rss"},
		},
		{
			name: "dedupes by url keeping first seen",
			raw: []models.RawSource{
				{Url: "https://a.example/rss", Name: "first"},
				{Url: "https://b.example/rss"},
				{Url: "https://a.example/rss", Name: "second"},
			},
			expected: []string{"https://a.example/rss", "https://b.example/rss"},
		},
		{
			name: "url identity is case sensitive",
			raw: []models.RawSource{
				{Url: "https://a.example/RSS"},
				{Url: "https://a.example/rss"},
			},
			expected: []string{"https://a.example/RSS", "https://a.example/rss"},
		},
		{
			name:    "empty url",
			raw:     []models.RawSource{{Url: "https://a.example/rss"}, {Url: "  "}},
			wantErr: true,
		},
		{
			name:    "not a url",
			raw:     []models.RawSource{{Url: "feeds.example.com/rss"}},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			raw:     []models.RawSource{{Url: "ftp://a.example/rss"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, err := registry.Normalize(tt.raw)
			if tt.wantErr {
				var validationErr *models.ValidationError
				require.Error(t, err)
				assert.True(t, errors.As(err, &validationErr))
				assert.Equal(t, models.ValidationErrorKind, models.KindOf(err))
				assert.Nil(t, sources)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, registry.Urls(sources))
		})
	}
}

func TestNormalizeFirstSeenWins(t *testing.T) {
	sources, err := registry.Normalize([]models.RawSource{
		{Url: " https://a.example/rss ", Name: " First "},
		{Url: "https://a.example/rss", Name: "Second"},
	})
	require.NoError(t, err)
	require.Len(t, sources, 1)

	assert.Equal(t, "https://a.example/rss", sources[0].Url)
	assert.Equal(t, "First", sources[0].DisplayName)
	assert.Equal(t, registry.SourceId("https://a.example/rss"), sources[0].Id)
}

func TestNormalizeKeepsConfiguredId(t *testing.T) {
	sources, err := registry.Normalize([]models.RawSource{{Id: "bbc", Url: "http://feeds.bbci.co.uk/news/world/rss.xml"}})
	require.NoError(t, err)
	assert.Equal(t, "bbc", sources[0].Id)
}

func TestNormalizeReportsField(t *testing.T) {
	_, err := registry.Normalize([]models.RawSource{{Url: "https://a.example"}, {Url: ""}})

	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "feeds[1].url", validationErr.Field)
}

func TestResolvedName(t *testing.T) {
	assert.Equal(t, "BBC", models.FeedSource{Url: "http://feeds.bbci.co.uk/rss", DisplayName: "BBC"}.ResolvedName())
	assert.Equal(t, "feeds.bbci.co.uk", models.FeedSource{Url: "http://feeds.bbci.co.uk/rss"}.ResolvedName())
}

func TestValidateUrl(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{url: "https://example.com/rss"},
		{url: "http://example.com/feed.xml?format=rss"},
		{url: "", wantErr: true},
		{url: "example.com/rss", wantErr: true},
		{url: "ftp://example.com/rss", wantErr: true},
		{url: "https:///rss", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			var err error = registry.ValidateUrl(tt.url)
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.True(t, err == nil)
				return
			}
			var validationErr *models.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Reason)
		})
	}
}

func TestWithField(t *testing.T) {
	err := registry.WithField(registry.ValidateUrl(""), "feeds[3].url")

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "feeds[3].url", validationErr.Field)

	other := errors.New("boom")
	assert.Same(t, other, registry.WithField(other, "x"))
}
