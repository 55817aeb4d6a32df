// files.go — HTTP handlers операций над записями базы знаний.
// Загрузка (multipart и JSON/base64), список, карточка, обновление,
// удаление, bulk-операции, скачивание исходных байт.
package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goknowbase/internal/api/errors"
	"github.com/bigkaa/goknowbase/internal/api/middleware"
	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/service"
)

// maxRequestBody — лимит на тело запроса загрузки.
// Больше MaxFileSize: base64 раздувает полезную нагрузку примерно на треть,
// плюс заголовки multipart и JSON-обвязка.
const maxRequestBody = model.MaxFileSize + model.MaxFileSize/2 + 1<<20

// FilesHandler — обработчик endpoints записей базы знаний.
type FilesHandler struct {
	ingest    *service.IngestService
	knowledge *service.KnowledgeService
	logger    *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(ingest *service.IngestService, knowledge *service.KnowledgeService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		ingest:    ingest,
		knowledge: knowledge,
		logger:    logger.With(slog.String("component", "files_handler")),
	}
}

// --- Загрузка ---

// transportError — сбой транспортного уровня при декодировании загрузки.
// Не путать с валидационными ошибками: те терминальны и fallback не включают.
type transportError struct {
	transport string
	cause     error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %s", e.transport, e.cause.Error())
}

// jsonUploadRequest — тело POST /knowledge/files.
// Имя файла принимается под обоими историческими ключами.
type jsonUploadRequest struct {
	FileName       string         `json:"file_name"`
	LegacyFilename string         `json:"filename"`
	FileType       string         `json:"file_type"`
	FileSize       int64          `json:"file_size"`
	Content        string         `json:"content"`
	IsBase64       bool           `json:"is_base64"`
	Category       string         `json:"category"`
	Tags           []string       `json:"tags"`
	Metadata       map[string]any `json:"metadata"`
}

// Upload обрабатывает POST /knowledge/files/binary и POST /knowledge/files.
// Приём идёт через единый шлюз: сначала попытка разобрать тело как
// structured multipart, при сбое транспортного уровня — как JSON с base64.
// Запись создаётся ровно один раз; если не сработали оба транспорта,
// клиенту возвращаются обе причины.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		apierrors.ValidationError(w, "Ошибка чтения тела запроса: "+err.Error())
		return
	}
	if int64(len(body)) > maxRequestBody {
		apierrors.FileTooLarge(w, "Тело запроса превышает допустимый размер")
		return
	}

	input, transport, decodeErr := h.decodeUpload(r.Header.Get("Content-Type"), body)
	if decodeErr != nil {
		var terr *transportError
		if errors.As(decodeErr, &terr) {
			apierrors.TransportFailure(w, decodeErr.Error())
		} else {
			apierrors.ValidationError(w, decodeErr.Error())
		}
		return
	}

	record, warnings, uploadErr := h.ingest.Upload(r.Context(), owner, input)
	if uploadErr != nil {
		respondServiceError(w, h.logger, uploadErr, "upload")
		return
	}

	message := "Файл успешно загружен"
	if len(warnings) > 0 {
		message = "Файл сохранён с предупреждениями: " + strings.Join(warnings, "; ")
	}

	file := domainToAPIFile(record, true)

	// Формат ответа зависит от сработавшего транспорта:
	// multipart-клиенты ожидают флаг success.
	if transport == "multipart" {
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"file":    file,
			"message": message,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": message,
		"file":    file,
	})
}

// decodeUpload — машина состояний приёма: multipart, затем JSON/base64.
// Возвращает вход сервиса и имя сработавшего транспорта.
// Транспортный сбой обеих попыток возвращается как *transportError
// с обеими причинами; валидационные ошибки терминальны.
func (h *FilesHandler) decodeUpload(contentType string, body []byte) (service.UploadInput, string, error) {
	input, multipartErr := decodeMultipartUpload(contentType, body)
	if multipartErr == nil {
		return input, "multipart", nil
	}

	var mterr *transportError
	if !errors.As(multipartErr, &mterr) {
		// Валидационная ошибка внутри корректно разобранного multipart
		return service.UploadInput{}, "multipart", multipartErr
	}

	input, jsonErr := decodeJSONUpload(body)
	if jsonErr == nil {
		h.logger.Debug("Переход на JSON транспорт загрузки",
			slog.String("multipart_error", multipartErr.Error()),
		)
		return input, "json", nil
	}

	var jterr *transportError
	if !errors.As(jsonErr, &jterr) {
		return service.UploadInput{}, "json", jsonErr
	}

	return service.UploadInput{}, "", &transportError{
		transport: "upload",
		cause:     fmt.Errorf("оба транспорта не сработали: %s; %s", multipartErr.Error(), jsonErr.Error()),
	}
}

// decodeMultipartUpload разбирает multipart/form-data тело.
// Поля: file (обязательно), category, tags (JSON-массив строкой),
// metadata (JSON-объект строкой).
func decodeMultipartUpload(contentType string, body []byte) (service.UploadInput, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return service.UploadInput{}, &transportError{transport: "multipart", cause: fmt.Errorf("разбор Content-Type: %w", err)}
	}
	if mediaType != "multipart/form-data" {
		return service.UploadInput{}, &transportError{transport: "multipart", cause: fmt.Errorf("неожиданный media type %s", mediaType)}
	}
	boundary := params["boundary"]
	if boundary == "" {
		return service.UploadInput{}, &transportError{transport: "multipart", cause: errors.New("отсутствует boundary")}
	}

	form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxRequestBody)
	if err != nil {
		return service.UploadInput{}, &transportError{transport: "multipart", cause: fmt.Errorf("разбор формы: %w", err)}
	}
	defer func() { _ = form.RemoveAll() }()

	files := form.File["file"]
	if len(files) == 0 {
		return service.UploadInput{}, errors.New("поле 'file' обязательно")
	}

	part, err := files[0].Open()
	if err != nil {
		return service.UploadInput{}, fmt.Errorf("открытие части 'file': %w", err)
	}
	defer part.Close()

	payload, err := io.ReadAll(part)
	if err != nil {
		return service.UploadInput{}, fmt.Errorf("чтение части 'file': %w", err)
	}

	input := service.UploadInput{
		FileName: files[0].Filename,
		FileType: files[0].Header.Get("Content-Type"),
		Payload:  payload,
		Category: formValue(form, "category"),
	}

	if tagsJSON := formValue(form, "tags"); tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &input.Tags); err != nil {
			return service.UploadInput{}, fmt.Errorf("поле 'tags' должно быть JSON-массивом строк: %w", err)
		}
	}

	if metaJSON := formValue(form, "metadata"); metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &input.Metadata); err != nil {
			return service.UploadInput{}, fmt.Errorf("поле 'metadata' должно быть JSON-объектом: %w", err)
		}
	}

	return input, nil
}

// decodeJSONUpload разбирает JSON тело с base64-содержимым.
func decodeJSONUpload(body []byte) (service.UploadInput, error) {
	var req jsonUploadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return service.UploadInput{}, &transportError{transport: "json", cause: fmt.Errorf("разбор JSON: %w", err)}
	}

	var payload []byte
	if req.IsBase64 {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return service.UploadInput{}, fmt.Errorf("поле 'content' не является корректным base64: %w", err)
		}
		payload = decoded
	} else {
		payload = []byte(req.Content)
	}

	if req.FileSize > 0 && req.FileSize != int64(len(payload)) {
		return service.UploadInput{}, fmt.Errorf("file_size %d не совпадает с размером содержимого %d", req.FileSize, len(payload))
	}

	return service.UploadInput{
		FileName:       req.FileName,
		LegacyFilename: req.LegacyFilename,
		FileType:       req.FileType,
		Payload:        payload,
		Category:       req.Category,
		Tags:           req.Tags,
		Metadata:       req.Metadata,
	}, nil
}

// formValue возвращает первое значение поля multipart-формы.
func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// --- Чтение ---

// List обрабатывает GET /knowledge/files.
// Пагинация: limit, offset. Содержимое в листинге не возвращается.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.ValidationError(w, "Параметр limit должен быть целым числом")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apierrors.ValidationError(w, "Параметр offset должен быть целым числом")
		return
	}

	page, listErr := h.knowledge.List(r.Context(), owner, limit, offset)
	if listErr != nil {
		respondServiceError(w, h.logger, listErr, "list")
		return
	}

	files := make([]fileResponse, 0, len(page.Items))
	for _, item := range page.Items {
		files = append(files, domainToAPIFile(item, false))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":  files,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// Get обрабатывает GET /knowledge/files/{id}.
// exclude_content=true убирает тяжёлые поля из ответа.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	excludeContent := r.URL.Query().Get("exclude_content") == "true"

	record, err := h.knowledge.Get(r.Context(), id, owner, !excludeContent)
	if err != nil {
		respondServiceError(w, h.logger, err, "get")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file": domainToAPIFile(record, !excludeContent),
	})
}

// Download обрабатывает GET /knowledge/files/{id}/download.
// Отдаёт исходные байты документа как attachment.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	record, payload, err := h.knowledge.Download(r.Context(), id, owner)
	if err != nil {
		respondServiceError(w, h.logger, err, "download")
		return
	}

	contentType := record.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// --- Изменение ---

// updateRequest — частичное тело PATCH и update_data bulk-обновления.
// Указатели отличают «поле не передано» от «поле сброшено».
type updateRequest struct {
	FileName       *string         `json:"file_name"`
	LegacyFilename *string         `json:"filename"`
	Category       *string         `json:"category"`
	Tags           *[]string       `json:"tags"`
	Metadata       *map[string]any `json:"metadata"`
}

// toUpdateFields приводит API-запрос к доменному частичному обновлению.
func (req updateRequest) toUpdateFields() model.UpdateFields {
	fields := model.UpdateFields{
		FileName: req.FileName,
		Category: req.Category,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	}
	if fields.FileName == nil {
		fields.FileName = req.LegacyFilename
	}
	return fields
}

// Update обрабатывает PATCH /knowledge/files/{id}.
func (h *FilesHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	fields := req.toUpdateFields()
	if fields.Empty() {
		apierrors.ValidationError(w, "Необходимо указать хотя бы одно поле для обновления")
		return
	}

	record, err := h.knowledge.Update(r.Context(), id, owner, fields)
	if err != nil {
		respondServiceError(w, h.logger, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Запись обновлена",
		"file":    domainToAPIFile(record, false),
	})
}

// Delete обрабатывает DELETE /knowledge/files/{id}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	deleted, err := h.knowledge.Delete(r.Context(), id, owner)
	if err != nil {
		respondServiceError(w, h.logger, err, "delete")
		return
	}
	if !deleted {
		apierrors.NotFound(w, "Запись не найдена")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Запись удалена",
	})
}

// bulkDeleteRequest — тело POST /knowledge/files/bulk-delete.
type bulkDeleteRequest struct {
	FileIDs []string `json:"file_ids"`
}

// BulkDelete обрабатывает POST /knowledge/files/bulk-delete.
// Удаляются только записи вызывающего владельца, чужие id игнорируются.
func (h *FilesHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if len(req.FileIDs) == 0 {
		apierrors.ValidationError(w, "Список file_ids пуст")
		return
	}

	count, err := h.knowledge.BulkDelete(r.Context(), req.FileIDs, owner)
	if err != nil {
		respondServiceError(w, h.logger, err, "bulk_delete")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Массовое удаление выполнено",
		"deleted_count": count,
	})
}

// bulkUpdateRequest — тело POST /knowledge/files/bulk-update.
type bulkUpdateRequest struct {
	FileIDs    []string      `json:"file_ids"`
	UpdateData updateRequest `json:"update_data"`
}

// BulkUpdate обрабатывает POST /knowledge/files/bulk-update.
func (h *FilesHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	var req bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if len(req.FileIDs) == 0 {
		apierrors.ValidationError(w, "Список file_ids пуст")
		return
	}

	fields := req.UpdateData.toUpdateFields()
	if fields.Empty() {
		apierrors.ValidationError(w, "update_data не содержит полей для обновления")
		return
	}

	count, err := h.knowledge.BulkUpdate(r.Context(), req.FileIDs, owner, fields)
	if err != nil {
		respondServiceError(w, h.logger, err, "bulk_update")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Массовое обновление выполнено",
		"updated_count": count,
	})
}

// queryInt читает целочисленный query-параметр с значением по умолчанию.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
