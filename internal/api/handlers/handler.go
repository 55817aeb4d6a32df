// handler.go — общие типы и вспомогательные функции HTTP-обработчиков.
// Сериализация KnowledgeFile в API-формат и маппинг ошибок сервисного слоя.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goknowbase/internal/api/errors"
	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/service"
)

// fileResponse — API-представление KnowledgeFile.
// Имя файла отдаётся под обоими историческими ключами
// (file_name и filename), клиенты читают любой из них.
type fileResponse struct {
	ID             string         `json:"id"`
	FileName       string         `json:"file_name"`
	LegacyFilename string         `json:"filename"`
	FileType       string         `json:"file_type"`
	FileSize       int64          `json:"file_size"`
	Content        *string        `json:"content,omitempty"`
	Category       *string        `json:"category,omitempty"`
	Tags           []string       `json:"tags"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// domainToAPIFile преобразует доменную модель в API-формат.
// BinaryData никогда не попадает в JSON-ответы, исходные байты
// отдаются отдельным download endpoint.
func domainToAPIFile(f *model.KnowledgeFile, includeContent bool) fileResponse {
	resp := fileResponse{
		ID:             f.ID,
		FileName:       f.FileName,
		LegacyFilename: f.FileName,
		FileType:       f.FileType,
		FileSize:       f.FileSize,
		Category:       f.Category,
		Tags:           f.Tags,
		Metadata:       f.Metadata,
		CreatedAt:      formatTime(f.CreatedAt),
		UpdatedAt:      formatTime(f.UpdatedAt),
	}

	if resp.Tags == nil {
		resp.Tags = []string{}
	}

	if includeContent {
		content := f.Content
		resp.Content = &content
	}

	return resp
}

// respondServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки считаются сбоем хранилища: 503 с correlation id,
// который логируется для сопоставления с жалобой клиента.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error, operation string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Запись не найдена")
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, "Размер файла превышает допустимый лимит 10 MiB")
	case errors.Is(err, service.ErrEmptyFile):
		apierrors.ValidationError(w, "Файл пуст")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrSearchTimeout):
		apierrors.SearchTimeout(w, "Поиск не уложился в отведённое время")
	default:
		correlationID := apierrors.StoreError(w, "Хранилище временно недоступно")
		logger.Error("Ошибка хранилища",
			slog.String("operation", operation),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// formatTime форматирует время для API-ответов.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
