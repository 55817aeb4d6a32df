// ingest.go — сервис приёма документов.
// Координирует нормализацию, извлечение текста и сохранение записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/extract"
	"github.com/bigkaa/goknowbase/internal/normalize"
	"github.com/bigkaa/goknowbase/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запись не найдена или принадлежит другому владельцу.
	ErrNotFound = errors.New("запись не найдена")
	// ErrValidation — некорректный запрос вызывающего, повтор бессмыслен.
	ErrValidation = errors.New("некорректный запрос")
	// ErrFileTooLarge — размер файла превышает допустимый лимит.
	ErrFileTooLarge = errors.New("размер файла превышает лимит")
	// ErrEmptyFile — пустой файл не принимается.
	ErrEmptyFile = errors.New("пустой файл")
)

// Prometheus-метрики приёма.
var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "km_uploads_total",
	Help: "Общее количество загрузок по итоговому статусу.",
}, []string{"status"})

// UploadInput — нормализуемые поля загрузки.
// Транспортный слой декодирует полезную нагрузку (multipart или base64)
// до вызова сервиса; здесь payload всегда сырые байты.
type UploadInput struct {
	// FileName — каноническое имя файла
	FileName string
	// LegacyFilename — имя из устаревшего поля filename
	LegacyFilename string
	// FileType — заявленный клиентом MIME-тип (может быть пустым)
	FileType string
	// Payload — байты документа
	Payload []byte
	// Category — категория (пустая строка = без категории)
	Category string
	// Tags — теги (дубликаты схлопываются)
	Tags []string
	// Metadata — метаданные, заданные клиентом
	Metadata map[string]any
}

// IngestService — сервис приёма документов в базу знаний.
type IngestService struct {
	repo   repository.KnowledgeRepository
	pool   *extract.Pool
	budget time.Duration
	logger *slog.Logger
}

// NewIngestService создаёт сервис приёма.
// budget — бюджет времени на извлечение текста одного документа.
func NewIngestService(
	repo repository.KnowledgeRepository,
	pool *extract.Pool,
	budget time.Duration,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		repo:   repo,
		pool:   pool,
		budget: budget,
		logger: logger.With(slog.String("component", "ingest_service")),
	}
}

// Upload принимает документ: валидирует, извлекает текст и сохраняет запись.
// Возвращает созданную запись и предупреждения деградированного извлечения.
//
// Ошибки валидации терминальны. Ошибки извлечения не препятствуют
// сохранению: запись создаётся с пустым content и флагом в metadata.
// Отмена запроса прерывает загрузку целиком, частичная запись не создаётся.
func (s *IngestService) Upload(ctx context.Context, ownerID string, in UploadInput) (*model.KnowledgeFile, []string, error) {
	fileName := normalize.FileName(in.FileName, in.LegacyFilename)
	if fileName == "" {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, fmt.Errorf("%w: имя файла не задано", ErrValidation)
	}

	// Валидация размера терминальна, fallback транспорта её не спасает
	if len(in.Payload) == 0 {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, ErrEmptyFile
	}
	if int64(len(in.Payload)) > model.MaxFileSize {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, fmt.Errorf("%w: %d байт при лимите %d", ErrFileTooLarge, len(in.Payload), model.MaxFileSize)
	}

	fileType := normalize.FileType(in.FileType, fileName)

	metadata := map[string]any{}
	maps.Copy(metadata, in.Metadata)

	content, warnings, err := s.extractContent(ctx, in.Payload, fileType, metadata)
	if err != nil {
		uploadsTotal.WithLabelValues("cancelled").Inc()
		return nil, nil, err
	}

	record := &model.KnowledgeFile{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		FileName:   fileName,
		FileType:   fileType,
		FileSize:   int64(len(in.Payload)),
		Content:    content,
		BinaryData: in.Payload,
		Category:   normalize.Category(in.Category),
		Tags:       normalize.Tags(in.Tags),
		Metadata:   metadata,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, repository.ErrInvalidSize) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileTooLarge, err)
		}
		return nil, nil, fmt.Errorf("сохранение записи: %w", err)
	}

	status := "ok"
	if len(warnings) > 0 {
		status = "degraded"
	}
	uploadsTotal.WithLabelValues(status).Inc()

	s.logger.Info("Документ принят",
		slog.String("file_id", record.ID),
		slog.String("file_name", record.FileName),
		slog.String("file_type", record.FileType),
		slog.Int64("file_size", record.FileSize),
		slog.Int("warnings", len(warnings)),
	)

	return record, warnings, nil
}

// extractContent извлекает текст документа с деградацией при ошибках.
// Возвращает извлечённый текст и предупреждения; metadata дополняется
// атрибутами документа и флагами деградации. Ошибка возвращается только
// при отмене исходного запроса.
func (s *IngestService) extractContent(ctx context.Context, payload []byte, fileType string, metadata map[string]any) (string, []string, error) {
	if extract.FormatForType(fileType) == extract.FormatUnsupported {
		metadata["extraction_skipped"] = "unsupported_format"
		return "", []string{fmt.Sprintf("формат %s не поддерживается, текст не извлечён", fileType)}, nil
	}

	// Бюджет извлечения выводится из таймаута запроса: дочерний контекст
	// истекает раньше, если запрос ближе к своему дедлайну
	extractCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	res, err := s.pool.Extract(extractCtx, payload, fileType)
	if err != nil {
		// Отмена исходного запроса — всё или ничего, запись не создаётся
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}

		switch {
		case errors.Is(err, extract.ErrExtractionTimeout):
			s.logger.Warn("Бюджет извлечения исчерпан", slog.String("file_type", fileType))
			metadata["extraction_timeout"] = true
			return "", []string{"извлечение текста прервано по таймауту, запись сохранена без содержимого"}, nil
		case errors.Is(err, extract.ErrUnsupportedFormat):
			metadata["extraction_skipped"] = "unsupported_format"
			return "", []string{fmt.Sprintf("формат %s не поддерживается, текст не извлечён", fileType)}, nil
		default:
			s.logger.Warn("Ошибка извлечения текста",
				slog.String("file_type", fileType),
				slog.String("error", err.Error()),
			)
			metadata["extraction_error"] = true
			return "", []string{"не удалось извлечь текст, запись сохранена без содержимого"}, nil
		}
	}

	// Атрибуты документа не затирают ключи, заданные клиентом
	for k, v := range res.Metadata {
		if _, exists := metadata[k]; !exists {
			metadata[k] = v
		}
	}

	return res.Text, nil, nil
}
