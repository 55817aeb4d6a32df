// Пакет extract — извлечение текста и метаданных из загружаемых документов.
//
// Каждый формат (PDF, DOCX, plain text, HTML) реализован отдельной чистой
// функцией (bytes, mime-type) → (text, metadata). Диспетчеризация идёт через
// закрытое множество Format — неизвестный тип возвращает ErrUnsupportedFormat,
// а не падает в runtime-рефлексию.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ошибки извлечения.
var (
	// ErrUnsupportedFormat — формат не поддерживается ни одним экстрактором.
	// Не фатальна: запись сохраняется с пустым content.
	ErrUnsupportedFormat = errors.New("формат не поддерживается")
	// ErrExtraction — документ заявленного формата не удалось разобрать.
	ErrExtraction = errors.New("ошибка извлечения текста")
	// ErrExtractionTimeout — извлечение не уложилось в бюджет времени.
	ErrExtractionTimeout = errors.New("таймаут извлечения текста")
)

// Prometheus-метрики извлечения.
var (
	extractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "km_extraction_duration_seconds",
		Help:    "Длительность извлечения текста по форматам.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})
	extractionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "km_extraction_errors_total",
		Help: "Количество ошибок извлечения по форматам.",
	}, []string{"format"})
)

// Format — закрытое множество поддерживаемых форматов документов.
type Format string

const (
	// FormatPDF — application/pdf.
	FormatPDF Format = "pdf"
	// FormatDOCX — Office Open XML (Word).
	FormatDOCX Format = "docx"
	// FormatText — text/plain и родственные текстовые типы.
	FormatText Format = "text"
	// FormatHTML — text/html.
	FormatHTML Format = "html"
	// FormatUnsupported — всё остальное.
	FormatUnsupported Format = "unsupported"
)

// mimeDOCX — полный MIME-тип DOCX.
const mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// FormatForType определяет Format по каноническому MIME-типу.
func FormatForType(fileType string) Format {
	switch fileType {
	case "application/pdf":
		return FormatPDF
	case mimeDOCX:
		return FormatDOCX
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return FormatText
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	default:
		return FormatUnsupported
	}
}

// Result — результат извлечения: нормализованный текст и метаданные формата.
type Result struct {
	// Text — извлечённый плоский текст (для поиска и превью)
	Text string
	// Metadata — структурные атрибуты документа (author, title, page_count, ...)
	Metadata map[string]any
}

// Extract извлекает текст и метаданные из data по каноническому MIME-типу.
// Синхронная CPU-bound операция; ctx проверяется между страницами и позволяет
// прервать извлечение при таймауте запроса. Не держит никаких блокировок.
func Extract(ctx context.Context, data []byte, fileType string) (*Result, error) {
	format := FormatForType(fileType)

	start := time.Now()
	result, err := dispatch(ctx, data, format)
	extractionDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())

	if err != nil {
		extractionErrorsTotal.WithLabelValues(string(format)).Inc()
		return nil, err
	}
	return result, nil
}

// dispatch вызывает экстрактор для указанного формата.
// Единственное место ветвления по Format — множество закрыто.
func dispatch(ctx context.Context, data []byte, format Format) (*Result, error) {
	switch format {
	case FormatPDF:
		return extractPDF(ctx, data)
	case FormatDOCX:
		return extractDOCX(ctx, data)
	case FormatText:
		return extractText(data)
	case FormatHTML:
		return extractHTML(data)
	case FormatUnsupported:
		return nil, ErrUnsupportedFormat
	default:
		return nil, fmt.Errorf("%w: неизвестный формат %q", ErrUnsupportedFormat, format)
	}
}
