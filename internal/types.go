package internal

import (
	"sjsage522/pricemonitor/internal/crawler"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/publisher"
	"sjsage522/pricemonitor/services/store"
)

// Dependencies holds the services shared by the tracker and the monitor
type Dependencies struct {
	Store     *store.Store
	Resolver  crawler.Resolver
	Results   *cache.ResultCache
	Publisher publisher.Publisher
}
