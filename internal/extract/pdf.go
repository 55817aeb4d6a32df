// pdf.go — экстрактор PDF через github.com/ledongthuc/pdf.
// Текст собирается постранично с маркером границы страницы,
// метаданные — из Info dictionary документа.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PageSeparator — маркер границы страницы в извлечённом тексте.
const PageSeparator = "\n\f\n"

// infoKeys — ключи Info dictionary, переносимые в метаданные записи.
var infoKeys = map[string]string{
	"Author":   "author",
	"Title":    "title",
	"Creator":  "creator",
	"Producer": "producer",
}

// extractPDF извлекает текст и метаданные из PDF-документа.
// Страницы обходятся по порядку; битые страницы пропускаются,
// полностью нечитаемый документ возвращает ErrExtraction.
func extractPDF(ctx context.Context, data []byte) (result *Result, err error) {
	// Библиотека паникует на некоторых повреждённых документах —
	// конвертируем панику в ErrExtraction, вызывающий решает судьбу записи.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: паника парсера PDF: %v", ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)

	for i := 1; i <= numPages; i++ {
		// Извлечение CPU-bound — уважаем дедлайн запроса между страницами
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, ctxErr)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			// Битая страница не отменяет документ целиком
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	metadata := pdfInfoMetadata(reader, numPages)

	return &Result{
		Text:     strings.Join(pages, PageSeparator),
		Metadata: metadata,
	}, nil
}

// pdfInfoMetadata собирает метаданные из Info dictionary документа.
func pdfInfoMetadata(reader *pdf.Reader, numPages int) map[string]any {
	metadata := map[string]any{
		"page_count": numPages,
	}

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return metadata
	}

	for infoKey, metaKey := range infoKeys {
		if v := info.Key(infoKey); !v.IsNull() {
			if s := strings.TrimSpace(v.RawString()); s != "" {
				metadata[metaKey] = s
			}
		}
	}

	if v := info.Key("CreationDate"); !v.IsNull() {
		metadata["creation_date"] = pdfDate(v.RawString())
	}
	if v := info.Key("ModDate"); !v.IsNull() {
		metadata["modification_date"] = pdfDate(v.RawString())
	}

	return metadata
}

// pdfDate разбирает дату формата PDF (D:YYYYMMDDHHMMSS...).
// При неразборчивом значении возвращает исходную строку как есть.
func pdfDate(raw string) string {
	s := strings.TrimPrefix(raw, "D:")
	// Отбрасываем таймзону и лишние символы, оставляем до секунд
	for _, layout := range []string{"20060102150405", "200601021504", "20060102"} {
		if len(s) >= len(layout) {
			if t, err := time.Parse(layout, s[:len(layout)]); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
	}
	return raw
}
