package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linkCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_link_cache_hits_total",
		Help: "Количество попаданий в кэш прямых ссылок",
	})
	linkCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_link_cache_misses_total",
		Help: "Количество промахов кэша прямых ссылок",
	})
)

// LinkCache — LRU-кэш прямых ссылок по file_id с TTL.
// TTL должен быть заметно меньше срока действия ссылки на платформе.
// Кэшируются только успешные результаты.
type LinkCache struct {
	cache *expirable.LRU[string, string]
}

// NewLinkCache создаёт кэш. ttl == 0 выключает кэш (возвращает nil).
func NewLinkCache(maxSize int, ttl time.Duration) *LinkCache {
	if ttl <= 0 || maxSize <= 0 {
		return nil
	}
	return &LinkCache{cache: expirable.NewLRU[string, string](maxSize, nil, ttl)}
}

// Get возвращает ссылку по file_id. Nil-кэш всегда промахивается.
func (c *LinkCache) Get(handle string) (string, bool) {
	if c == nil {
		return "", false
	}
	link, ok := c.cache.Get(handle)
	if ok {
		linkCacheHitsTotal.Inc()
		return link, true
	}
	linkCacheMissesTotal.Inc()
	return "", false
}

// Set запоминает ссылку.
func (c *LinkCache) Set(handle, link string) {
	if c == nil {
		return
	}
	c.cache.Add(handle, link)
}

// Delete забывает ссылку.
func (c *LinkCache) Delete(handle string) {
	if c == nil {
		return
	}
	c.cache.Remove(handle)
}
