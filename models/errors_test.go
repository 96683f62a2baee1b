package models_test

import (
	"context"
	"errors"
	"fmt"
	"newsdeck/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected models.ErrorKind
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "validation error",
			err:      models.NewValidationError("url", "must not be empty"),
			expected: models.ValidationErrorKind,
		},
		{
			name:     "wrapped fetch error keeps its kind",
			err:      fmt.Errorf("cycle: %w", &models.FetchError{Kind: models.ParseErrorKind, Url: "http://a", Err: errors.New("bad xml")}),
			expected: models.ParseErrorKind,
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("get: %w", context.DeadlineExceeded),
			expected: models.TimeoutErrorKind,
		},
		{
			name:     "net timeout",
			err:      timeoutErr{},
			expected: models.TimeoutErrorKind,
		},
		{
			name:     "anything else",
			err:      errors.New("connection refused"),
			expected: models.TransportErrorKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, models.KindOf(tt.err))
		})
	}
}

func TestFailureOutcome(t *testing.T) {
	source := models.FeedSource{Url: "http://a"}

	ok := models.Success(source, nil)
	assert.True(t, ok.Ok())

	failed := models.Failure(source, context.DeadlineExceeded)
	assert.False(t, failed.Ok())
	assert.Equal(t, models.TimeoutErrorKind, failed.Reason)
}
