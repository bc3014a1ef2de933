package tracker

import (
	"context"
	"errors"
	"net/url"
	"time"

	"sjsage522/pricemonitor/internal"
	"sjsage522/pricemonitor/internal/crawler"
	"sjsage522/pricemonitor/logger"
	perrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/store"
)

// ErrPriceUnavailable is returned when a new product's page yields no price
var ErrPriceUnavailable = errors.New("could not fetch product information")

// Status summarizes the monitor for one chat
type Status struct {
	CheckInterval time.Duration
	Products      int
}

// Tracker implements the interactive bookkeeping operations
type Tracker struct {
	store         *store.Store
	resolver      crawler.Resolver
	results       *cache.ResultCache
	allowedHost   string
	checkInterval time.Duration
	now           func() time.Time
	log           *logger.Logger
}

// New creates a tracker. An empty allowedHost accepts any http(s) URL.
func New(deps internal.Dependencies, allowedHost string, checkInterval time.Duration) *Tracker {
	return &Tracker{
		store:         deps.Store,
		resolver:      deps.Resolver,
		results:       deps.Results,
		allowedHost:   allowedHost,
		checkInterval: checkInterval,
		now:           time.Now,
		log:           logger.ForTracker(),
	}
}

// ValidateURL checks that raw is an absolute URL on the allowed host
func (t *Tracker) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return perrors.NewValidation(raw, "not an absolute http(s) URL")
	}
	if t.allowedHost != "" && u.Host != t.allowedHost {
		return perrors.NewValidation(raw, "URL must be on "+t.allowedHost)
	}
	return nil
}

// Add starts monitoring rawURL for chatID. The price is resolved right away
// so the product enters the store with a known baseline.
func (t *Tracker) Add(ctx context.Context, chatID int64, rawURL string) (store.Entry, error) {
	if err := t.ValidateURL(rawURL); err != nil {
		return store.Entry{}, err
	}
	if t.store.Contains(chatID, rawURL) {
		return store.Entry{}, store.ErrDuplicate
	}

	res, ok := t.results.Lookup(rawURL)
	if !ok {
		res, ok = t.resolver.ResolvePrice(ctx, rawURL)
		if !ok || res.Name == "" {
			t.log.Warn().Int64("chat_id", chatID).Str("url", rawURL).Msg("Could not add product")
			return store.Entry{}, ErrPriceUnavailable
		}
		if err := t.results.Store(res); err != nil {
			t.log.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache result")
		}
	}

	now := t.now()
	product := store.Product{
		Name:      res.Name,
		LastPrice: res.Price,
		LastCheck: now,
		AddedDate: now,
	}
	if err := t.store.Add(chatID, rawURL, product); err != nil {
		return store.Entry{}, err
	}

	t.log.Info().
		Int64("chat_id", chatID).
		Str("url", rawURL).
		Str("price", FormatPrice(res.Price)).
		Msg("Started monitoring")
	return store.Entry{ChatID: chatID, URL: rawURL, Product: product}, nil
}

// List returns chatID's monitored products
func (t *Tracker) List(chatID int64) []store.Entry {
	return t.store.List(chatID)
}

// Remove stops monitoring rawURL for chatID and drops its cached result,
// so a later Add fetches a fresh price.
func (t *Tracker) Remove(chatID int64, rawURL string) (store.Product, error) {
	p, err := t.store.Remove(chatID, rawURL)
	if err != nil {
		return store.Product{}, err
	}
	if err := t.results.Forget(rawURL); err != nil {
		t.log.Warn().Err(err).Str("url", rawURL).Msg("Failed to drop cached result")
	}
	t.log.Info().Int64("chat_id", chatID).Str("url", rawURL).Msg("Stopped monitoring")
	return p, nil
}

// Status reports the check interval and chatID's product count
func (t *Tracker) Status(chatID int64) Status {
	return Status{
		CheckInterval: t.checkInterval,
		Products:      t.store.Count(chatID),
	}
}
