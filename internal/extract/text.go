// text.go — экстрактор plain text.
// Содержимое — декодированный буфер как есть; невалидные UTF-8
// последовательности заменяются, а не отклоняются.
package extract

import (
	"strings"
	"unicode/utf8"
)

// extractText возвращает содержимое буфера как UTF-8 текст.
// Метаданных у plain text нет.
func extractText(data []byte) (*Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}

	return &Result{
		Text:     text,
		Metadata: map[string]any{},
	}, nil
}
