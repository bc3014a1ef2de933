package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlerErrorMessage(t *testing.T) {
	err := NewNetwork("https://example.com/p", "failed to fetch URL", io.EOF)
	assert.Equal(t, "[network/fetch] https://example.com/p: failed to fetch URL - EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)

	err = NewValidation("https://example.com/p", "host not allowed")
	assert.Equal(t, "[validation] https://example.com/p: host not allowed", err.Error())

	err = NewConfiguration("CHECK_INTERVAL must be positive", nil)
	assert.Equal(t, "[configuration]: CHECK_INTERVAL must be positive", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewBlocked("u").IsRetryable())
	assert.False(t, NewHTTP("u", 500).IsRetryable())
	assert.False(t, NewBotChallenge("u").IsRetryable())
	assert.False(t, NewNetwork("u", "x", nil).IsRetryable())
	assert.False(t, NewParsing(ErrorTypeInvalidNumber, StageNormalize, "u", "x", nil).IsRetryable())

	assert.True(t, Retryable(fmt.Errorf("fetch: %w", NewBlocked("u"))))
	assert.False(t, Retryable(NewHTTP("u", 429)))
	assert.False(t, Retryable(io.EOF))
	assert.False(t, Retryable(nil))
}

func TestKind(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", NewBlocked("u"))
	assert.Equal(t, ErrorTypeBlocked, Kind(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeBlocked))
	assert.Equal(t, ErrorType(""), Kind(io.EOF))

	httpErr := NewHTTP("u", 502)
	assert.Equal(t, 502, httpErr.Status)
	assert.Equal(t, StageFetch, httpErr.Stage)
}
