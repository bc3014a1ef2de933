package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricemonitor/logger"
	perrors "sjsage522/pricemonitor/pkg/errors"
)

var (
	// ErrDuplicate is returned when a chat already monitors the URL
	ErrDuplicate = errors.New("product is already being monitored")
	// ErrNotFound is returned for a URL the chat does not monitor
	ErrNotFound = errors.New("product not found")
)

// Product is one monitored product page
type Product struct {
	Name      string          `json:"name"`
	LastPrice decimal.Decimal `json:"last_price"`
	LastCheck time.Time       `json:"last_check"`
	AddedDate time.Time       `json:"added_date"`
}

// Entry is a product together with its owner and URL
type Entry struct {
	ChatID int64  `json:"chat_id"`
	URL    string `json:"url"`
	Product
}

// Store holds the per-chat product lists and persists every mutation to a JSON file.
// It owns the file: one process opens it, and other processes edit products
// through that process's admin API.
type Store struct {
	path string
	log  *logger.Logger

	mu       sync.Mutex
	products map[int64]map[string]Product
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:     path,
		log:      logger.ForStore(),
		products: make(map[int64]map[string]Product),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info().Str("path", path).Msg("No product file yet, starting empty")
		return s, nil
	}
	if err != nil {
		return nil, perrors.NewStorage("failed to read "+path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.products); err != nil {
		return nil, perrors.NewStorage("failed to decode "+path, err)
	}

	s.log.Info().Str("path", path).Int("chats", len(s.products)).Msg("Loaded products")
	return s, nil
}

// save writes the whole store to a temp file and renames it over the old one.
// Callers hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return perrors.NewStorage("failed to create data directory", err)
	}

	payload, err := json.MarshalIndent(s.products, "", "    ")
	if err != nil {
		return perrors.NewStorage("failed to encode products", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return perrors.NewStorage("failed to write "+tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return perrors.NewStorage("failed to replace "+s.path, err)
	}
	return nil
}

// Add registers a product for chatID
func (s *Store) Add(chatID int64, url string, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.products[chatID]
	if !ok {
		chat = make(map[string]Product)
		s.products[chatID] = chat
	}
	if _, exists := chat[url]; exists {
		return ErrDuplicate
	}
	chat[url] = p

	if err := s.save(); err != nil {
		delete(chat, url)
		return err
	}
	s.log.Info().Int64("chat_id", chatID).Str("url", url).Str("name", p.Name).Msg("Product added")
	return nil
}

// Get returns the product chatID monitors at url
func (s *Store) Get(chatID int64, url string) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[chatID][url]
	return p, ok
}

// Contains reports whether chatID already monitors url
func (s *Store) Contains(chatID int64, url string) bool {
	_, ok := s.Get(chatID, url)
	return ok
}

// List returns chatID's products, oldest first
func (s *Store) List(chatID int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries(chatID)
}

// Count returns the number of products chatID monitors
func (s *Store) Count(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products[chatID])
}

// Remove deletes url from chatID's list and returns what was removed
func (s *Store) Remove(chatID int64, url string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.products[chatID]
	p, ok := chat[url]
	if !ok {
		return Product{}, ErrNotFound
	}
	delete(chat, url)
	if len(chat) == 0 {
		delete(s.products, chatID)
	}

	if err := s.save(); err != nil {
		if s.products[chatID] == nil {
			s.products[chatID] = chat
		}
		chat[url] = p
		return Product{}, err
	}
	s.log.Info().Int64("chat_id", chatID).Str("url", url).Msg("Product removed")
	return p, nil
}

// UpdatePrice records a new price and check time
func (s *Store) UpdatePrice(chatID int64, url string, price decimal.Decimal, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[chatID][url]
	if !ok {
		return fmt.Errorf("update %s for chat %d: %w", url, chatID, ErrNotFound)
	}
	prev := p
	p.LastPrice = price
	p.LastCheck = checkedAt
	s.products[chatID][url] = p

	if err := s.save(); err != nil {
		s.products[chatID][url] = prev
		return err
	}
	return nil
}

// Snapshot returns every monitored product, ordered by chat then age.
// The monitor iterates the copy so interactive edits never race the cycle.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatIDs := make([]int64, 0, len(s.products))
	for id := range s.products {
		chatIDs = append(chatIDs, id)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })

	var all []Entry
	for _, id := range chatIDs {
		all = append(all, s.entries(id)...)
	}
	return all
}

// entries lists one chat's products. Callers hold s.mu.
func (s *Store) entries(chatID int64) []Entry {
	chat := s.products[chatID]
	list := make([]Entry, 0, len(chat))
	for url, p := range chat {
		list = append(list, Entry{ChatID: chatID, URL: url, Product: p})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].AddedDate.Equal(list[j].AddedDate) {
			return list[i].AddedDate.Before(list[j].AddedDate)
		}
		return list[i].URL < list[j].URL
	})
	return list
}
