package tracker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricemonitor/internal"
	"sjsage522/pricemonitor/internal/crawler"
	perrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/publisher"
	"sjsage522/pricemonitor/services/store"
)

const airMax = "https://www.zalando.nl/nike-sportswear-air-max-90.html"

// MockResolver returns canned results per URL
type MockResolver struct {
	mu      sync.Mutex
	results map[string]*crawler.PriceResult
	calls   int
}

var _ crawler.Resolver = (*MockResolver)(nil)

func (m *MockResolver) ResolvePrice(_ context.Context, url string) (*crawler.PriceResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	res, ok := m.results[url]
	return res, ok
}

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func newTracker(t *testing.T, resolver *MockResolver) (*Tracker, *cache.ResultCache) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "products.json"))
	require.NoError(t, err)

	results := cache.NewResultCache(&MockCacheService{cache: map[string][]byte{}}, time.Minute)
	tr := New(internal.Dependencies{Store: s, Resolver: resolver, Results: results}, "www.zalando.nl", time.Hour)
	tr.now = func() time.Time { return time.Date(2024, 11, 29, 8, 0, 0, 0, time.UTC) }
	return tr, results
}

func airMaxResolver() *MockResolver {
	return &MockResolver{results: map[string]*crawler.PriceResult{
		airMax: {URL: airMax, Name: "Nike Sportswear AIR MAX 90", Price: decimal.RequireFromString("149.95")},
	}}
}

func TestAddProduct(t *testing.T) {
	resolver := airMaxResolver()
	tr, results := newTracker(t, resolver)

	entry, err := tr.Add(context.Background(), 42, airMax)
	require.NoError(t, err)
	assert.Equal(t, "Nike Sportswear AIR MAX 90", entry.Name)
	assert.Equal(t, "€149.95", FormatPrice(entry.LastPrice))
	assert.Equal(t, tr.now(), entry.AddedDate)

	list := tr.List(42)
	require.Len(t, list, 1)
	assert.Equal(t, airMax, list[0].URL)

	_, cached := results.Lookup(airMax)
	assert.True(t, cached)
	assert.Equal(t, 1, resolver.calls)
}

func TestAddUsesCachedResult(t *testing.T) {
	resolver := airMaxResolver()
	tr, results := newTracker(t, resolver)

	require.NoError(t, results.Store(&crawler.PriceResult{
		URL: airMax, Name: "Nike Sportswear AIR MAX 90", Price: decimal.RequireFromString("139.95"),
	}))

	entry, err := tr.Add(context.Background(), 42, airMax)
	require.NoError(t, err)
	assert.Equal(t, "139.95", entry.LastPrice.StringFixed(2))
	assert.Equal(t, 0, resolver.calls)
}

func TestAddRejectsForeignHost(t *testing.T) {
	resolver := airMaxResolver()
	tr, _ := newTracker(t, resolver)

	for _, raw := range []string{
		"https://www.zalando.de/nike.html",
		"ftp://www.zalando.nl/nike.html",
		"www.zalando.nl/nike.html",
		"::",
	} {
		_, err := tr.Add(context.Background(), 42, raw)
		assert.Equal(t, perrors.ErrorTypeValidation, perrors.Kind(err), raw)
	}
	assert.Equal(t, 0, resolver.calls)
}

func TestAddRejectsDuplicate(t *testing.T) {
	resolver := airMaxResolver()
	tr, _ := newTracker(t, resolver)

	_, err := tr.Add(context.Background(), 42, airMax)
	require.NoError(t, err)

	_, err = tr.Add(context.Background(), 42, airMax)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Equal(t, 1, resolver.calls)
}

func TestAddPriceUnavailable(t *testing.T) {
	tr, _ := newTracker(t, &MockResolver{results: map[string]*crawler.PriceResult{}})

	_, err := tr.Add(context.Background(), 42, airMax)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Empty(t, tr.List(42))
}

func TestRemoveAndStatus(t *testing.T) {
	resolver := airMaxResolver()
	tr, results := newTracker(t, resolver)

	_, err := tr.Add(context.Background(), 42, airMax)
	require.NoError(t, err)
	assert.Equal(t, Status{CheckInterval: time.Hour, Products: 1}, tr.Status(42))

	removed, err := tr.Remove(42, airMax)
	require.NoError(t, err)
	assert.Equal(t, "Nike Sportswear AIR MAX 90", removed.Name)
	assert.Equal(t, 0, tr.Status(42).Products)

	// The cached result goes with the product, so re-adding fetches again
	_, cached := results.Lookup(airMax)
	assert.False(t, cached)
	_, err = tr.Add(context.Background(), 42, airMax)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.calls)
	_, err = tr.Remove(42, airMax)
	require.NoError(t, err)

	_, err = tr.Remove(42, airMax)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "€38.99", FormatPrice(decimal.RequireFromString("38.99")))
	assert.Equal(t, "€1235.00", FormatPrice(decimal.RequireFromString("1235")))
	assert.Equal(t, "€0.50", FormatPrice(decimal.RequireFromString("0.5")))
}

func TestFormatAlert(t *testing.T) {
	drop := publisher.NewPriceAlert(42, airMax, "Nike Air Max 90",
		decimal.RequireFromString("149.95"), decimal.RequireFromString("119.96"), time.Now())
	text := FormatAlert(drop)
	assert.Contains(t, text, "Old price: €149.95")
	assert.Contains(t, text, "New price: €119.96")
	assert.Contains(t, text, "📉 €29.99 (-20.0%)")
	assert.Contains(t, text, airMax)

	rise := publisher.NewPriceAlert(42, airMax, "Nike Air Max 90",
		decimal.RequireFromString("100"), decimal.RequireFromString("110"), time.Now())
	assert.Contains(t, FormatAlert(rise), "📈 €10.00 (+10.0%)")
}

func TestFormatListAndStatus(t *testing.T) {
	assert.Equal(t, "You have no products being monitored.", FormatList(nil))

	list := FormatList([]store.Entry{{
		ChatID: 42,
		URL:    airMax,
		Product: store.Product{
			Name:      "Nike Air Max 90",
			LastPrice: decimal.RequireFromString("149.95"),
			AddedDate: time.Date(2024, 11, 29, 8, 0, 0, 0, time.UTC),
		},
	}})
	assert.Contains(t, list, "💰 Last price: €149.95")
	assert.Contains(t, list, "⏰ Added: 2024-11-29")

	status := FormatStatus(Status{CheckInterval: time.Hour, Products: 3})
	assert.Contains(t, status, "Check Interval: 3600 seconds")
	assert.Contains(t, status, "Monitored Products: 3")
}
