package worker

import (
	"context"
	"fmt"
	"time"

	"sjsage522/pricemonitor/internal"
	"sjsage522/pricemonitor/internal/crawler"
	"sjsage522/pricemonitor/internal/pacer"
	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/publisher"
	"sjsage522/pricemonitor/services/store"
	"sjsage522/pricemonitor/services/tracker"
)

// Pacing is the part of the pacer a monitoring cycle waits on
type Pacing interface {
	DelayBeforeFetch()
	DelayBetweenCycles(base time.Duration)
}

// Worker runs the background monitoring cycles
type Worker struct {
	ctx              context.Context
	store            *store.Store
	resolver         crawler.Resolver
	results          *cache.ResultCache
	publisher        publisher.Publisher
	pacing           Pacing
	sleep            pacer.Sleeper
	checkInterval    time.Duration
	recoveryInterval time.Duration
	now              func() time.Time
	log              *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	deps internal.Dependencies,
	pacing Pacing,
	sleep pacer.Sleeper,
	checkInterval time.Duration,
	recoveryInterval time.Duration,
) *Worker {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Worker{
		ctx:              ctx,
		store:            deps.Store,
		resolver:         deps.Resolver,
		results:          deps.Results,
		publisher:        deps.Publisher,
		pacing:           pacing,
		sleep:            sleep,
		checkInterval:    checkInterval,
		recoveryInterval: recoveryInterval,
		now:              time.Now,
		log:              logger.ForMonitor(),
	}
}

// Start runs monitoring cycles until the context is cancelled.
// A failed cycle is followed by the recovery interval instead of the regular wait.
func (w *Worker) Start() {
	w.log.Info().Dur("interval", w.checkInterval).Msg("Price monitor started")
	for {
		if w.ctx.Err() != nil {
			w.log.Info().Msg("Price monitor stopped")
			return
		}

		start := time.Now()
		if err := w.RunCycle(); err != nil {
			w.log.Error().Err(err).Dur("recovery", w.recoveryInterval).Msg("Error in price check loop")
			w.sleep(w.recoveryInterval)
			continue
		}
		if logger.IsDebugEnabled() {
			w.log.Debug().Dur("elapsed", time.Since(start)).Msg("Check cycle finished")
		}

		if w.ctx.Err() != nil {
			w.log.Info().Msg("Price monitor stopped")
			return
		}
		w.pacing.DelayBetweenCycles(w.checkInterval)
	}
}

// RunCycle checks every stored product once, sequentially. The politeness
// delay follows each successful check only; a failed product moves straight
// on to the next, as blocked pages have already waited out their backoff.
func (w *Worker) RunCycle() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("check cycle panicked: %v", rec)
		}
	}()

	entries := w.store.Snapshot()
	w.log.Info().Int("products", len(entries)).Msg("Starting check cycle")

	for _, entry := range entries {
		if w.ctx.Err() != nil {
			return nil
		}
		if w.checkProduct(entry) {
			w.pacing.DelayBeforeFetch()
		}
	}

	// Trim the alert stream after each pass
	if w.publisher != nil {
		if err := w.publisher.TrimStreams(); err != nil {
			w.log.Warn().Err(err).Msg("Failed to trim alert stream")
		}
	}
	return nil
}

// checkProduct resolves one product and reports a change. It returns whether
// a price was obtained. Failures stay local to the product.
func (w *Worker) checkProduct(entry store.Entry) (checked bool) {
	log := w.log.WithFields(logger.Fields{"chat_id": entry.ChatID, "url": entry.URL})
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprint(rec)).Msg("Recovered while checking product")
			checked = false
		}
	}()

	log.Info().Msg("Checking price")
	res, ok := w.resolver.ResolvePrice(w.ctx, entry.URL)
	if !ok {
		log.Warn().Str("name", entry.Name).Msg("Could not fetch price")
		return false
	}

	if err := w.results.Store(res); err != nil {
		log.Warn().Err(err).Msg("Failed to cache result")
	}

	if res.Price.Equal(entry.LastPrice) {
		log.Debug().Str("price", res.Price.StringFixed(2)).Msg("Price unchanged")
		return true
	}

	checkedAt := w.now()
	alert := publisher.NewPriceAlert(entry.ChatID, entry.URL, entry.Name, entry.LastPrice, res.Price, checkedAt)
	alert.Message = tracker.FormatAlert(alert)
	if w.publisher != nil {
		if err := publisher.PublishAlert(w.publisher, alert); err != nil {
			log.Error().Err(err).Msg("Failed to publish price alert")
		} else {
			log.Info().
				Str("old_price", alert.OldPrice.StringFixed(2)).
				Str("new_price", alert.NewPrice.StringFixed(2)).
				Msg("Sent price alert")
		}
	}

	if err := w.store.UpdatePrice(entry.ChatID, entry.URL, res.Price, checkedAt); err != nil {
		// The product may have been removed while it was being checked
		log.Warn().Err(err).Msg("Failed to record new price")
	}
	return true
}
