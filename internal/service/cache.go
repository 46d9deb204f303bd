// cache.go — LRU-кэш политик с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Кэшируется только
// чтение по id; любая запись инвалидирует запись кэша.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/policyhub/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ph_policy_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш политик.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ph_policy_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша политик.",
	})
)

// PolicyCache — LRU-кэш политик с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш.
type PolicyCache struct {
	cache *expirable.LRU[string, *model.Policy]
}

// NewPolicyCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// При maxSize == 0 кэш выключен: Get всегда промахивается, Set/Delete — no-op.
func NewPolicyCache(maxSize int, ttl time.Duration) *PolicyCache {
	if maxSize == 0 {
		return &PolicyCache{}
	}
	return &PolicyCache{
		cache: expirable.NewLRU[string, *model.Policy](maxSize, nil, ttl),
	}
}

// Get возвращает политику из кэша по id.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *PolicyCache) Get(id string) (*model.Policy, bool) {
	if c.cache == nil {
		return nil, false
	}
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *PolicyCache) Set(id string, p *model.Policy) {
	if c.cache == nil {
		return
	}
	c.cache.Add(id, p)
}

// Delete удаляет запись из кэша (инвалидация при изменении).
func (c *PolicyCache) Delete(id string) {
	if c.cache == nil {
		return
	}
	c.cache.Remove(id)
}
