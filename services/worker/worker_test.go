package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricemonitor/internal"
	"sjsage522/pricemonitor/internal/crawler"
	"sjsage522/pricemonitor/services/publisher"
	"sjsage522/pricemonitor/services/store"
)

const (
	airMax = "https://www.zalando.nl/nike-sportswear-air-max-90.html"
	samba  = "https://www.zalando.nl/adidas-originals-samba-og.html"
	levis  = "https://www.zalando.nl/levis-501-original.html"
)

// MockResolver returns canned prices per URL and can be told to panic
type MockResolver struct {
	mu      sync.Mutex
	prices  map[string]string
	panicOn string
	calls   []string
}

var _ crawler.Resolver = (*MockResolver)(nil)

func (m *MockResolver) ResolvePrice(_ context.Context, url string) (*crawler.PriceResult, bool) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	price, ok := m.prices[url]
	m.mu.Unlock()

	if url == m.panicOn {
		panic("unexpected markup")
	}
	if !ok {
		return nil, false
	}
	return &crawler.PriceResult{URL: url, Name: "name", Price: decimal.RequireFromString(price)}, true
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	trims    int
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) alerts(t *testing.T) []publisher.PriceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var alerts []publisher.PriceAlert
	for _, msg := range m.messages {
		var a publisher.PriceAlert
		require.NoError(t, json.Unmarshal(msg, &a))
		alerts = append(alerts, a)
	}
	return alerts
}

// countingPacing counts delays; it cancels the run after the given number of cycles
type countingPacing struct {
	mu          sync.Mutex
	fetchDelays int
	cycleDelays []time.Duration
	stopAfter   int
	cancel      context.CancelFunc
}

func (p *countingPacing) DelayBeforeFetch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchDelays++
}

func (p *countingPacing) DelayBetweenCycles(base time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycleDelays = append(p.cycleDelays, base)
	if p.cancel != nil && len(p.cycleDelays) >= p.stopAfter {
		p.cancel()
	}
}

func seedStore(t *testing.T, prices map[string]string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "products.json"))
	require.NoError(t, err)

	added := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	for url, price := range prices {
		require.NoError(t, s.Add(42, url, store.Product{
			Name:      "Product " + url,
			LastPrice: decimal.RequireFromString(price),
			LastCheck: added,
			AddedDate: added.Add(time.Duration(i) * time.Minute),
		}))
		i++
	}
	return s
}

func TestRunCyclePacesEachProductOnce(t *testing.T) {
	s := seedStore(t, map[string]string{airMax: "149.95", samba: "119.99", levis: "99.95"})
	resolver := &MockResolver{prices: map[string]string{airMax: "149.95", samba: "119.99", levis: "99.95"}}
	pub := &MockPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pacing := &countingPacing{stopAfter: 1, cancel: cancel}

	w := NewWorker(ctx, internal.Dependencies{Store: s, Resolver: resolver, Publisher: pub}, pacing, func(time.Duration) {}, time.Hour, time.Minute)
	w.Start()

	assert.Len(t, resolver.calls, 3)
	assert.Equal(t, 3, pacing.fetchDelays)
	assert.Equal(t, []time.Duration{time.Hour}, pacing.cycleDelays)
	assert.Empty(t, pub.alerts(t))
	assert.Equal(t, 1, pub.trims)
}

func TestRunCyclePublishesOnlyOnChange(t *testing.T) {
	s := seedStore(t, map[string]string{airMax: "149.95", samba: "119.99"})
	resolver := &MockResolver{prices: map[string]string{airMax: "119.95", samba: "119.99"}}
	pub := &MockPublisher{}

	w := NewWorker(context.Background(), internal.Dependencies{Store: s, Resolver: resolver, Publisher: pub}, &countingPacing{}, nil, time.Hour, time.Minute)
	checkedAt := time.Date(2024, 11, 29, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return checkedAt }

	require.NoError(t, w.RunCycle())

	alerts := pub.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, airMax, alerts[0].URL)
	assert.Equal(t, int64(42), alerts[0].ChatID)
	assert.Equal(t, "149.95", alerts[0].OldPrice.StringFixed(2))
	assert.Equal(t, "119.95", alerts[0].NewPrice.StringFixed(2))
	assert.Equal(t, "-30.00", alerts[0].Change.StringFixed(2))
	assert.Contains(t, alerts[0].Message, "New price: €119.95")

	p, ok := s.Get(42, airMax)
	require.True(t, ok)
	assert.Equal(t, "119.95", p.LastPrice.StringFixed(2))
	assert.True(t, checkedAt.Equal(p.LastCheck))

	unchanged, _ := s.Get(42, samba)
	assert.Equal(t, "119.99", unchanged.LastPrice.StringFixed(2))

	// A second pass at the same prices stays quiet
	require.NoError(t, w.RunCycle())
	assert.Len(t, pub.alerts(t), 1)
}

func TestRunCycleContinuesPastFailures(t *testing.T) {
	s := seedStore(t, map[string]string{airMax: "149.95", samba: "119.99", levis: "99.95"})
	resolver := &MockResolver{
		prices:  map[string]string{airMax: "149.95", levis: "89.95"},
		panicOn: airMax,
	}
	pub := &MockPublisher{}
	pacing := &countingPacing{}

	w := NewWorker(context.Background(), internal.Dependencies{Store: s, Resolver: resolver, Publisher: pub}, pacing, nil, time.Hour, time.Minute)
	require.NoError(t, w.RunCycle())

	assert.Len(t, resolver.calls, 3)
	// Only the successful check is followed by the politeness delay
	assert.Equal(t, 1, pacing.fetchDelays)
	alerts := pub.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, levis, alerts[0].URL)
}

func TestStartRecoversFromCycleFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	w := NewWorker(ctx, internal.Dependencies{}, &countingPacing{}, func(d time.Duration) {
		slept = append(slept, d)
		cancel()
	}, time.Hour, time.Minute)

	// A nil store makes the cycle itself fail
	w.Start()
	assert.Equal(t, []time.Duration{time.Minute}, slept)
}

func TestStartStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := &MockResolver{}
	s := seedStore(t, map[string]string{airMax: "149.95"})
	pacing := &countingPacing{}
	w := NewWorker(ctx, internal.Dependencies{Store: s, Resolver: resolver}, pacing, nil, time.Hour, time.Minute)

	w.Start()
	assert.Empty(t, resolver.calls)
	assert.Empty(t, pacing.cycleDelays)
}
