// search.go — HTTP handler GET /knowledge/search.
// Полнотекстовый поиск по записям владельца с фильтрами и сниппетами.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/goknowbase/internal/api/errors"
	"github.com/bigkaa/goknowbase/internal/api/middleware"
	"github.com/bigkaa/goknowbase/internal/service"
)

// SearchHandler — обработчик поискового endpoint.
type SearchHandler struct {
	search *service.SearchService
	logger *slog.Logger
}

// NewSearchHandler создаёт обработчик поиска.
func NewSearchHandler(search *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		search: search,
		logger: logger.With(slog.String("component", "search_handler")),
	}
}

// searchHit — один результат поиска в API-формате.
type searchHit struct {
	fileResponse
	Score    int      `json:"score"`
	Snippets []string `json:"snippets,omitempty"`
}

// Search обрабатывает GET /knowledge/search.
// Параметры: query, category, file_type, tags (через запятую),
// created_after, created_before (RFC3339), include_snippets, limit.
// Пустой query при заданных фильтрах допустим: возвращаются все записи,
// прошедшие фильтры.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	params := r.URL.Query()

	q := service.SearchQuery{
		Query:           params.Get("query"),
		IncludeSnippets: params.Get("include_snippets") == "true",
	}

	if category := params.Get("category"); category != "" {
		q.Category = &category
	}
	if fileType := params.Get("file_type"); fileType != "" {
		q.FileType = &fileType
	}
	if tags := params.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				q.Tags = append(q.Tags, trimmed)
			}
		}
	}

	if after := params.Get("created_after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			apierrors.ValidationError(w, "Параметр created_after должен быть в формате RFC3339")
			return
		}
		q.CreatedAfter = &t
	}
	if before := params.Get("created_before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			apierrors.ValidationError(w, "Параметр created_before должен быть в формате RFC3339")
			return
		}
		q.CreatedBefore = &t
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.ValidationError(w, "Параметр limit должен быть целым числом")
		return
	}
	q.Limit = limit

	result, searchErr := h.search.Search(r.Context(), owner, q)
	if searchErr != nil {
		respondServiceError(w, h.logger, searchErr, "search")
		return
	}

	hits := make([]searchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, searchHit{
			fileResponse: domainToAPIFile(hit.File, false),
			Score:        hit.Score,
			Snippets:     hit.Snippets,
		})
	}

	filters := map[string]any{}
	if q.Category != nil {
		filters["category"] = *q.Category
	}
	if q.FileType != nil {
		filters["file_type"] = *q.FileType
	}
	if len(q.Tags) > 0 {
		filters["tags"] = q.Tags
	}
	if q.CreatedAfter != nil {
		filters["created_after"] = formatTime(*q.CreatedAfter)
	}
	if q.CreatedBefore != nil {
		filters["created_before"] = formatTime(*q.CreatedBefore)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q.Query,
		"filters": filters,
		"results": hits,
		"count":   result.Count,
		"limit":   result.Limit,
	})
}
