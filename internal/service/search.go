// search.go — поисковый сервис базы знаний.
// Кандидаты отбираются в PostgreSQL (структурные фильтры плюс
// ILIKE-префильтр), точное токенное совпадение, ранжирование
// и сниппеты считаются здесь.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/repository"
)

// ErrSearchTimeout — поиск не уложился в бюджет времени.
// Частичные результаты не возвращаются.
var ErrSearchTimeout = errors.New("поиск прерван по таймауту")

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "km_search_total",
		Help: "Общее количество поисковых запросов.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "km_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// defaultSearchLimit — лимит результатов по умолчанию.
const defaultSearchLimit = 20

// SearchQuery — параметры поискового запроса.
type SearchQuery struct {
	// Query — строка запроса; пустая строка допустима при наличии фильтров
	Query string
	// Category — фильтр по категории
	Category *string
	// FileType — фильтр по MIME-типу
	FileType *string
	// Tags — запись должна содержать все указанные теги
	Tags []string
	// CreatedAfter / CreatedBefore — фильтр по дате создания
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	// IncludeSnippets — строить сниппеты вокруг совпадений
	IncludeSnippets bool
	// Limit — максимум результатов (по умолчанию 20)
	Limit int
}

// SearchHit — один результат поиска.
type SearchHit struct {
	// File — запись без тяжёлых полей
	File *model.KnowledgeFile
	// Score — число различных токенов запроса, найденных в записи
	Score int
	// Snippets — фрагменты content вокруг совпадений (до 2)
	Snippets []string
}

// SearchResult — результат поиска.
type SearchResult struct {
	// Hits — ранжированные результаты
	Hits []*SearchHit
	// Count — число возвращённых результатов
	Count int
	// Limit — применённый лимит
	Limit int
}

// SearchService — поисковый сервис базы знаний.
type SearchService struct {
	repo           repository.KnowledgeRepository
	timeout        time.Duration
	candidateLimit int
	logger         *slog.Logger
}

// NewSearchService создаёт поисковый сервис.
// timeout — бюджет времени одного запроса,
// candidateLimit — потолок кандидатов, отбираемых в SQL.
func NewSearchService(
	repo repository.KnowledgeRepository,
	timeout time.Duration,
	candidateLimit int,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		repo:           repo,
		timeout:        timeout,
		candidateLimit: candidateLimit,
		logger:         logger.With(slog.String("component", "search_service")),
	}
}

// Search выполняет поиск по записям владельца.
//
// Совпадение — хотя бы один токен запроса в хотя бы одном из полей
// file_name, content, tags (OR по токенам и полям). Ранжирование:
// больше различных совпавших токенов выше, при равенстве новее выше.
// Лимит применяется после ранжирования. Пустой запрос с фильтрами
// возвращает все записи, подходящие под фильтры.
func (s *SearchService) Search(ctx context.Context, ownerID string, q SearchQuery) (*SearchResult, error) {
	start := time.Now()
	searchTotal.Inc()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	tokens := Tokenize(q.Query)

	candidates, err := s.repo.SearchCandidates(ctx, ownerID, repository.SearchFilters{
		Category:       q.Category,
		FileType:       q.FileType,
		Tags:           q.Tags,
		Tokens:         tokens,
		CreatedAfter:   q.CreatedAfter,
		CreatedBefore:  q.CreatedBefore,
		CandidateLimit: s.candidateLimit,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("поиск кандидатов: %w", err)
	}

	hits := make([]*SearchHit, 0, len(candidates))
	for _, c := range candidates {
		score, matched := scoreRecord(c, tokens)
		// При непустом запросе запись без совпадений выпадает;
		// префильтр ILIKE шире точного токенного совпадения
		if len(tokens) > 0 && score == 0 {
			continue
		}

		hit := &SearchHit{File: lightCopy(c), Score: score}
		if q.IncludeSnippets && len(matched) > 0 {
			hit.Snippets = BuildSnippets(c.Content, matched, defaultSnippetWidth, maxSnippets)
		}
		hits = append(hits, hit)
	}

	// Стабильность: кандидаты уже упорядочены по created_at DESC,
	// сортировка по score сохраняет этот порядок внутри групп
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	// Лимит применяется после ранжирования
	if len(hits) > limit {
		hits = hits[:limit]
	}

	if ctx.Err() != nil {
		return nil, ErrSearchTimeout
	}

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.Int("tokens", len(tokens)),
		slog.Int("candidates", len(candidates)),
		slog.Int("returned", len(hits)),
		slog.Duration("duration", duration),
	)

	return &SearchResult{Hits: hits, Count: len(hits), Limit: limit}, nil
}

// Tokenize разбивает строку запроса на токены: нижний регистр,
// разделители — всё, кроме букв и цифр, дубликаты схлопываются.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// scoreRecord возвращает число различных токенов, найденных в записи,
// и сами совпавшие токены (для сниппетов).
func scoreRecord(record *model.KnowledgeFile, tokens []string) (int, []string) {
	if len(tokens) == 0 {
		return 0, nil
	}

	name := strings.ToLower(record.FileName)
	content := strings.ToLower(record.Content)

	var matched []string
	for _, token := range tokens {
		if strings.Contains(name, token) || strings.Contains(content, token) || tagMatch(record.Tags, token) {
			matched = append(matched, token)
		}
	}
	return len(matched), matched
}

// tagMatch проверяет вхождение токена в один из тегов.
func tagMatch(tags []string, token string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), token) {
			return true
		}
	}
	return false
}
