// taxonomy.go — HTTP handlers GET /knowledge/categories и /knowledge/tags.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/goknowbase/internal/api/middleware"
	"github.com/bigkaa/goknowbase/internal/service"
)

// TaxonomyHandler — обработчик справочных endpoints категорий и тегов.
type TaxonomyHandler struct {
	knowledge *service.KnowledgeService
	logger    *slog.Logger
}

// NewTaxonomyHandler создаёт обработчик справочных endpoints.
func NewTaxonomyHandler(knowledge *service.KnowledgeService, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		knowledge: knowledge,
		logger:    logger.With(slog.String("component", "taxonomy_handler")),
	}
}

// Categories обрабатывает GET /knowledge/categories.
// Возвращает отсортированный список категорий записей владельца.
func (h *TaxonomyHandler) Categories(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	categories, err := h.knowledge.Categories(r.Context(), owner)
	if err != nil {
		respondServiceError(w, h.logger, err, "categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
	})
}

// Tags обрабатывает GET /knowledge/tags.
// Возвращает отсортированный список тегов записей владельца.
func (h *TaxonomyHandler) Tags(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	tags, err := h.knowledge.Tags(r.Context(), owner)
	if err != nil {
		respondServiceError(w, h.logger, err, "tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tags": tags,
	})
}
