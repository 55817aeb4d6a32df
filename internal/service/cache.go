// Пакет service — бизнес-логика Knowledge Module.
// CacheService — LRU-кэш записей базы знаний с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goknowbase/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "km_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "km_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей.",
	})
)

// CacheService — LRU-кэш записей базы знаний с автоматическим TTL.
// Каждый экземпляр модуля имеет собственный in-memory кэш.
// Кэш хранит только полные записи; облегчённые проекции строит вызывающий.
type CacheService struct {
	cache *expirable.LRU[string, *model.KnowledgeFile]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize == 0 отключает кэширование: Get всегда промахивается.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	if maxSize == 0 {
		return &CacheService{}
	}
	cache := expirable.NewLRU[string, *model.KnowledgeFile](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает запись из кэша по id.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) Get(id string) (*model.KnowledgeFile, bool) {
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
func (c *CacheService) Set(id string, record *model.KnowledgeFile) {
	if c.cache == nil {
		return
	}
	c.cache.Add(id, record)
}

// Delete удаляет запись из кэша (инвалидация при мутациях).
func (c *CacheService) Delete(id string) {
	if c.cache == nil {
		return
	}
	c.cache.Remove(id)
}
