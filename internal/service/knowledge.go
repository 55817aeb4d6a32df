// knowledge.go — сервис чтения и мутации записей базы знаний.
// Координирует repository и LRU-кэш; все операции ограничены владельцем.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/normalize"
	"github.com/bigkaa/goknowbase/internal/repository"
)

// KnowledgeService — сервис доступа к записям базы знаний.
type KnowledgeService struct {
	repo   repository.KnowledgeRepository
	cache  *CacheService
	logger *slog.Logger
}

// NewKnowledgeService создаёт сервис доступа к записям.
func NewKnowledgeService(
	repo repository.KnowledgeRepository,
	cache *CacheService,
	logger *slog.Logger,
) *KnowledgeService {
	return &KnowledgeService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "knowledge_service")),
	}
}

// Get возвращает запись по id в пределах владельца.
// Полные записи проходят через LRU-кэш; облегчённая проекция
// (includeContent=false) строится из полной записи.
func (s *KnowledgeService) Get(ctx context.Context, id, ownerID string, includeContent bool) (*model.KnowledgeFile, error) {
	if !validUUID(id) {
		// Некорректный id неотличим от несуществующего
		return nil, ErrNotFound
	}

	if record, ok := s.cache.Get(id); ok {
		// Кэш общий для всех владельцев, скоуп проверяется здесь
		if record.OwnerID != ownerID {
			return nil, ErrNotFound
		}
		if !includeContent {
			return lightCopy(record), nil
		}
		return record, nil
	}

	record, err := s.repo.GetByID(ctx, id, ownerID, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}

	s.cache.Set(id, record)

	if !includeContent {
		return lightCopy(record), nil
	}
	return record, nil
}

// ListResult — страница записей с пагинацией.
type ListResult struct {
	// Items — записи страницы
	Items []*model.KnowledgeFile
	// Total — общее количество записей владельца
	Total int
	// Limit — запрошенный лимит
	Limit int
	// Offset — текущее смещение
	Offset int
}

// Границы пагинации.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// List возвращает страницу записей владельца, новые первыми.
// Содержимое в листинге не возвращается.
func (s *KnowledgeService) List(ctx context.Context, ownerID string, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.repo.List(ctx, ownerID, limit, offset, false)
	if err != nil {
		return nil, fmt.Errorf("получение списка записей: %w", err)
	}

	return &ListResult{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Update применяет частичное обновление записи и инвалидирует кэш.
func (s *KnowledgeService) Update(ctx context.Context, id, ownerID string, fields model.UpdateFields) (*model.KnowledgeFile, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}
	if fields.Tags != nil {
		normalized := normalize.Tags(*fields.Tags)
		fields.Tags = &normalized
	}

	record, err := s.repo.Update(ctx, id, ownerID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление записи: %w", err)
	}

	s.cache.Delete(id)

	s.logger.Info("Запись обновлена", slog.String("file_id", id))
	return record, nil
}

// Delete удаляет запись. Идемпотентна: отсутствующая или чужая
// запись даёт false без ошибки.
func (s *KnowledgeService) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	if !validUUID(id) {
		return false, nil
	}

	deleted, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("удаление записи: %w", err)
	}

	if deleted {
		s.cache.Delete(id)
		s.logger.Info("Запись удалена", slog.String("file_id", id))
	}
	return deleted, nil
}

// BulkDelete удаляет записи владельца из списка.
// Чужие и некорректные id молча пропускаются.
func (s *KnowledgeService) BulkDelete(ctx context.Context, ids []string, ownerID string) (int, error) {
	valid := filterUUIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}

	count, err := s.repo.BulkDelete(ctx, valid, ownerID)
	if err != nil {
		return 0, fmt.Errorf("массовое удаление: %w", err)
	}

	for _, id := range valid {
		s.cache.Delete(id)
	}

	s.logger.Info("Массовое удаление выполнено",
		slog.Int("requested", len(ids)),
		slog.Int("deleted", count),
	)
	return count, nil
}

// BulkUpdate применяет частичное обновление к записям владельца из списка.
// Чужие и некорректные id молча пропускаются.
func (s *KnowledgeService) BulkUpdate(ctx context.Context, ids []string, ownerID string, fields model.UpdateFields) (int, error) {
	valid := filterUUIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}
	if fields.Tags != nil {
		normalized := normalize.Tags(*fields.Tags)
		fields.Tags = &normalized
	}

	count, err := s.repo.BulkUpdate(ctx, valid, ownerID, fields)
	if err != nil {
		return 0, fmt.Errorf("массовое обновление: %w", err)
	}

	for _, id := range valid {
		s.cache.Delete(id)
	}

	s.logger.Info("Массовое обновление выполнено",
		slog.Int("requested", len(ids)),
		slog.Int("updated", count),
	)
	return count, nil
}

// Categories возвращает различные категории владельца.
func (s *KnowledgeService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	cats, err := s.repo.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение категорий: %w", err)
	}
	return cats, nil
}

// Tags возвращает различные теги владельца.
func (s *KnowledgeService) Tags(ctx context.Context, ownerID string) ([]string, error) {
	tags, err := s.repo.ListTags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение тегов: %w", err)
	}
	return tags, nil
}

// Download возвращает исходные байты документа для скачивания.
// Предпочитается binary_data; для старых записей без него
// отдаётся извлечённый текст.
func (s *KnowledgeService) Download(ctx context.Context, id, ownerID string) (*model.KnowledgeFile, []byte, error) {
	record, err := s.Get(ctx, id, ownerID, true)
	if err != nil {
		return nil, nil, err
	}

	payload := normalize.Payload(record.BinaryData, []byte(record.Content))
	if len(payload) == 0 {
		return nil, nil, ErrNotFound
	}
	return record, payload, nil
}

// lightCopy возвращает копию записи без тяжёлых полей.
func lightCopy(record *model.KnowledgeFile) *model.KnowledgeFile {
	light := *record
	light.Content = ""
	light.BinaryData = nil
	return &light
}

// validUUID проверяет, что id — корректный UUID.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// filterUUIDs отбрасывает некорректные id.
func filterUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}
