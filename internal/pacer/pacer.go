package pacer

import (
	"sync"
	"time"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/logger"
)

const (
	// MaxRetries is the number of consecutive blocks after which a URL is given up on
	MaxRetries = 3

	backoffBase = 30 * time.Second
	backoffCap  = 300 * time.Second

	cycleJitterMinSeconds = 60
	cycleJitterMaxSeconds = 180

	settleMin = 2 * time.Second
	settleMax = 4 * time.Second
)

// Sleeper blocks the calling goroutine. time.Sleep in production.
type Sleeper func(time.Duration)

// Pacer spaces out outbound requests and tracks consecutive blocks per URL
type Pacer struct {
	minDelay time.Duration
	maxDelay time.Duration
	sleep    Sleeper
	rnd      helpers.RandomSource
	log      *logger.Logger

	mu       sync.Mutex
	failures map[string]int
}

// New creates a pacer with a per-fetch delay drawn from [minDelay, maxDelay]
func New(minDelay, maxDelay time.Duration, rnd helpers.RandomSource, sleep Sleeper) *Pacer {
	if sleep == nil {
		sleep = time.Sleep
	}
	if rnd == nil {
		rnd = helpers.NewRandomSource()
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleep:    sleep,
		rnd:      rnd,
		log:      logger.ForFetcher(),
		failures: make(map[string]int),
	}
}

// uniform draws a duration from [min, max]
func (p *Pacer) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(p.rnd.Float64()*float64(max-min))
}

// DelayBeforeFetch sleeps for the configured per-fetch window
func (p *Pacer) DelayBeforeFetch() {
	d := p.uniform(p.minDelay, p.maxDelay)
	p.log.Debug().Dur("delay", d).Msg("Pausing before fetch")
	p.sleep(d)
}

// SettleAfterWarmup sleeps briefly after the warm-up request, as a visitor reading the home page would
func (p *Pacer) SettleAfterWarmup() {
	p.sleep(p.uniform(settleMin, settleMax))
}

// CycleDelay returns base plus a whole number of seconds in [60, 180]
func (p *Pacer) CycleDelay(base time.Duration) time.Duration {
	jitter := cycleJitterMinSeconds + p.rnd.Intn(cycleJitterMaxSeconds-cycleJitterMinSeconds+1)
	return base + time.Duration(jitter)*time.Second
}

// DelayBetweenCycles sleeps base plus jitter between full monitoring passes
func (p *Pacer) DelayBetweenCycles(base time.Duration) {
	d := p.CycleDelay(base)
	p.log.Info().Dur("sleep", d).Msg("Sleeping before next check cycle")
	p.sleep(d)
}

// Backoff returns the wait after the n-th consecutive failure: min(300s, 30s * 2^(n-1))
func Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := backoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// ShouldRetry records a failure for url, sleeps the backoff and reports
// whether another attempt is allowed. The third consecutive call resets the
// counter and returns false.
func (p *Pacer) ShouldRetry(url string) bool {
	p.mu.Lock()
	p.failures[url]++
	count := p.failures[url]
	giveUp := count >= MaxRetries
	if giveUp {
		p.failures[url] = 0
	}
	p.mu.Unlock()

	wait := Backoff(count)
	p.log.Warn().
		Str("url", url).
		Int("failures", count).
		Dur("backoff", wait).
		Bool("give_up", giveUp).
		Msg("Backing off after block")
	p.sleep(wait)

	return !giveUp
}

// Reset clears the failure counter for url after a successful extraction
func (p *Pacer) Reset(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, url)
}

// Failures returns the current consecutive failure count for url
func (p *Pacer) Failures(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[url]
}
