package crawler

import (
	"context"
	"sync"
	"time"
)

// countingPacing records waits instead of sleeping
type countingPacing struct {
	mu      sync.Mutex
	settles int
	delays  int
}

func (p *countingPacing) SettleAfterWarmup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settles++
}

func (p *countingPacing) DelayBeforeFetch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays++
}

// sequenceRand replays a fixed list of Intn results
type sequenceRand struct {
	mu   sync.Mutex
	ints []int
	i    int
}

func (r *sequenceRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.ints[r.i%len(r.ints)] % n
	r.i++
	return v
}

func (r *sequenceRand) Float64() float64 { return 0 }

type fetchStep struct {
	body string
	err  error
}

// scriptedFetcher returns its steps in order and repeats the last one
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []fetchStep
	calls int
	panic bool
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (*RawDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panic {
		panic("selector engine exploded")
	}
	step := f.steps[len(f.steps)-1]
	if f.calls <= len(f.steps) {
		step = f.steps[f.calls-1]
	}
	if step.err != nil {
		return nil, step.err
	}
	return &RawDocument{URL: url, FinalURL: url, Status: 200, Body: step.body}, nil
}

// countingBackoff allows a fixed number of retries
type countingBackoff struct {
	allow       int
	shouldCalls int
	resets      int
}

func (b *countingBackoff) ShouldRetry(string) bool {
	b.shouldCalls++
	return b.shouldCalls <= b.allow
}

func (b *countingBackoff) Reset(string) { b.resets++ }

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
}
