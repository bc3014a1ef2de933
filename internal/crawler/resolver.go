package crawler

import (
	"context"
	"errors"
	"fmt"

	"sjsage522/pricemonitor/internal/pacer"
	"sjsage522/pricemonitor/logger"
	perrors "sjsage522/pricemonitor/pkg/errors"
)

// Backoff is the retry bookkeeping the resolver consults on blocks
type Backoff interface {
	ShouldRetry(url string) bool
	Reset(url string)
}

// PriceResolver composes fetching, extraction and the retry policy
type PriceResolver struct {
	fetcher   Fetcher
	extractor *Extractor
	backoff   Backoff
	log       *logger.Logger
}

var _ Resolver = (*PriceResolver)(nil)

// NewPriceResolver creates a resolver
func NewPriceResolver(fetcher Fetcher, extractor *Extractor, backoff Backoff) *PriceResolver {
	return &PriceResolver{
		fetcher:   fetcher,
		extractor: extractor,
		backoff:   backoff,
		log:       logger.ForFetcher(),
	}
}

// ResolvePrice fetches url and extracts its price and name. Only blocks are
// retried, and at most pacer.MaxRetries attempts are made. Every failure,
// panics included, ends here as (nil, false).
func (r *PriceResolver) ResolvePrice(ctx context.Context, url string) (result *PriceResult, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("url", url).
				Str("panic", fmt.Sprint(rec)).
				Msg("Recovered from panic while resolving price")
			result, ok = nil, false
		}
	}()

	for attempt := 1; attempt <= pacer.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			r.log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("Price resolution cancelled")
			return nil, false
		}

		doc, err := r.fetcher.Fetch(ctx, url)
		if err != nil {
			if perrors.Retryable(err) && r.backoff.ShouldRetry(url) {
				r.log.Info().Str("url", url).Int("attempt", attempt).Msg("Blocked, retrying")
				continue
			}
			r.logFailure(url, attempt, err)
			return nil, false
		}

		res, err := r.extractor.Extract(doc)
		if err != nil {
			r.logFailure(url, attempt, err)
			return nil, false
		}

		r.backoff.Reset(url)
		r.log.Info().
			Str("url", url).
			Str("name", res.Name).
			Str("price", res.Price.StringFixed(2)).
			Int("attempt", attempt).
			Msg("Successfully found price")
		return res, true
	}

	r.log.Error().Str("url", url).Int("attempts", pacer.MaxRetries).Msg("Max retries reached")
	return nil, false
}

func (r *PriceResolver) logFailure(url string, attempt int, err error) {
	event := r.log.Error().Err(err).Str("url", url).Int("attempt", attempt)
	var ce *perrors.CrawlerError
	if errors.As(err, &ce) {
		event = event.Str("kind", string(ce.Type)).Str("stage", string(ce.Stage))
		if ce.Status != 0 {
			event = event.Int("status", ce.Status)
		}
	}
	event.Msg("Error getting price")
}
