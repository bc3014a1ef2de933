package helpers

import (
	mathrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// RandomSource is the randomness used for header and delay selection.
// *math/rand.Rand satisfies it; tests pass a fixed source.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// lockedRand makes a *rand.Rand safe for the monitor and the tracker to share
type lockedRand struct {
	mu  sync.Mutex
	rnd *mathrand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded from the clock
func NewRandomSource() RandomSource {
	return &lockedRand{rnd: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

// Fingerprint is one desktop browser identity. Client hints are empty for
// browsers that do not send them.
type Fingerprint struct {
	UserAgent string
	SecChUa   string
	Platform  string
}

// HTTP header configurations
var (
	fingerprints = []Fingerprint{
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			SecChUa:   `"Google Chrome";v="119", "Chromium";v="119", "Not?A_Brand";v="24"`,
			Platform:  `"Windows"`,
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			SecChUa:   `"Google Chrome";v="119", "Chromium";v="119", "Not?A_Brand";v="24"`,
			Platform:  `"macOS"`,
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
		},
	}

	defaultAcceptLanguage = "nl-NL,nl;q=0.9,en-US;q=0.8,en;q=0.7"
)

// Fingerprints returns a copy of the built-in identity pool
func Fingerprints() []Fingerprint {
	pool := make([]Fingerprint, len(fingerprints))
	copy(pool, fingerprints)
	return pool
}

// HeaderRandomizer draws a browser identity per request
type HeaderRandomizer struct {
	rnd            RandomSource
	pool           []Fingerprint
	acceptLanguage string
}

// NewHeaderRandomizer creates a randomizer over the built-in pool.
// An empty acceptLanguage falls back to Dutch.
func NewHeaderRandomizer(rnd RandomSource, acceptLanguage string) *HeaderRandomizer {
	if acceptLanguage == "" {
		acceptLanguage = defaultAcceptLanguage
	}
	return &HeaderRandomizer{
		rnd:            rnd,
		pool:           fingerprints,
		acceptLanguage: acceptLanguage,
	}
}

// NextHeaders returns a fresh header set for one request.
// Accept-Encoding is left to the transport so responses are decompressed transparently.
func (h *HeaderRandomizer) NextHeaders() http.Header {
	fp := h.pool[h.rnd.Intn(len(h.pool))]

	headers := http.Header{}
	headers.Set("User-Agent", fp.UserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	headers.Set("Accept-Language", h.acceptLanguage)
	headers.Set("Connection", "keep-alive")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Pragma", "no-cache")
	if fp.SecChUa != "" {
		headers.Set("Sec-Ch-Ua", fp.SecChUa)
		headers.Set("Sec-Ch-Ua-Mobile", "?0")
		headers.Set("Sec-Ch-Ua-Platform", fp.Platform)
	}
	headers.Set("Sec-Fetch-Dest", "document")
	headers.Set("Sec-Fetch-Mode", "navigate")
	headers.Set("Sec-Fetch-Site", "none")
	headers.Set("Sec-Fetch-User", "?1")
	headers.Set("Upgrade-Insecure-Requests", "1")
	headers.Set("DNT", "1")

	return headers
}
