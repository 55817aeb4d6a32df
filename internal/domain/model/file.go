// Пакет model — доменные модели Knowledge Module.
// KnowledgeFile — маппинг таблицы knowledge_files.
package model

import "time"

// Лимиты на загружаемые файлы.
const (
	// MaxFileSize — максимальный размер файла (10 MiB).
	MaxFileSize int64 = 10 * 1024 * 1024
)

// KnowledgeFile — запись документа в базе знаний.
// Все операции над записью строго ограничены OwnerID —
// записи одного владельца никогда не видны другому.
type KnowledgeFile struct {
	// ID — UUID файла, генерируется при создании, неизменяем
	ID string
	// OwnerID — идентификатор владельца (sub из JWT)
	OwnerID string
	// FileName — отображаемое имя файла (уникальность не требуется)
	FileName string
	// FileType — заявленный MIME-тип, определяет выбор экстрактора
	FileType string
	// FileSize — размер в байтах на момент загрузки (0 < size <= MaxFileSize)
	FileSize int64
	// Content — нормализованный извлечённый текст (для поиска и превью).
	// Пустой для неподдерживаемых форматов.
	Content string
	// BinaryData — исходное бинарное содержимое (для точного скачивания)
	BinaryData []byte
	// Category — опциональная свободная метка категории
	Category *string
	// Tags — теги файла (дубликаты схлопнуты, порядок не важен для поиска)
	Tags []string
	// Metadata — структурные атрибуты формата (author, title, page_count и т.д.)
	Metadata map[string]any
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения (обновляется при любой мутации)
	UpdatedAt time.Time
}

// CategoryValue возвращает категорию или пустую строку.
func (f *KnowledgeFile) CategoryValue() string {
	if f.Category == nil {
		return ""
	}
	return *f.Category
}

// UpdateFields — частичное обновление KnowledgeFile.
// nil-поле означает «не менять». UpdatedAt продвигается при любом обновлении.
type UpdateFields struct {
	// FileName — новое имя файла
	FileName *string
	// Category — новая категория ("" снимает категорию)
	Category *string
	// Tags — полная замена набора тегов
	Tags *[]string
	// Metadata — полная замена карты метаданных
	Metadata *map[string]any
	// Content — замена извлечённого текста
	Content *string
}

// Empty возвращает true, если не указано ни одного поля для обновления.
func (u UpdateFields) Empty() bool {
	return u.FileName == nil && u.Category == nil && u.Tags == nil &&
		u.Metadata == nil && u.Content == nil
}
