// html.go — экстрактор HTML через goquery.
// Markup срезается, стандартные entities декодирует сам парсер,
// структурные пробелы схлопываются. Метаданные не извлекаются.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML срезает разметку и возвращает плоский текст документа.
func extractHTML(data []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	// Скрипты и стили — не содержимое документа
	doc.Find("script, style, noscript, head").Remove()

	return &Result{
		Text:     collapseWhitespace(doc.Text()),
		Metadata: map[string]any{},
	}, nil
}

// collapseWhitespace схлопывает последовательности пробельных символов
// в одиночные пробелы и обрезает края.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
