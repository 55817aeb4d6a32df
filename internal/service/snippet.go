// snippet.go — построение сниппетов вокруг совпадений поиска.
package service

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Параметры сниппетов.
const (
	// defaultSnippetWidth — ширина окна сниппета в рунах
	defaultSnippetWidth = 80
	// maxSnippets — максимум сниппетов на запись
	maxSnippets = 2
)

// BuildSnippets возвращает до max фрагментов content шириной width рун,
// центрированных на первых вхождениях токенов. Перекрывающиеся окна
// сливаются в одно. Усечённые края помечаются многоточием.
func BuildSnippets(content string, tokens []string, width, max int) []string {
	if content == "" || len(tokens) == 0 || max <= 0 {
		return nil
	}

	runes := []rune(content)
	lowered := lowerRunes(runes)

	// Первое вхождение каждого токена; регистронезависимое сравнение
	// идёт по рунам один-к-одному, индексы совпадают с оригиналом
	var positions []int
	for _, token := range tokens {
		if pos := indexRunes(lowered, []rune(token)); pos >= 0 {
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return nil
	}
	sort.Ints(positions)

	// Окна вокруг совпадений, перекрытия сливаются
	type window struct{ start, end int }
	var windows []window
	for _, pos := range positions {
		start := pos - width/2
		if start < 0 {
			start = 0
		}
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}

		if n := len(windows); n > 0 && start <= windows[n-1].end {
			if end > windows[n-1].end {
				windows[n-1].end = end
			}
			continue
		}
		windows = append(windows, window{start, end})
	}
	if len(windows) > max {
		windows = windows[:max]
	}

	snippets := make([]string, 0, len(windows))
	for _, w := range windows {
		text := strings.TrimSpace(collapseSpace(string(runes[w.start:w.end])))
		if text == "" {
			continue
		}
		if w.start > 0 {
			text = "…" + text
		}
		if w.end < len(runes) {
			text += "…"
		}
		snippets = append(snippets, text)
	}
	return snippets
}

// lowerRunes приводит руны к нижнему регистру поштучно,
// сохраняя длину среза.
func lowerRunes(runes []rune) []rune {
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}
	return lowered
}

// indexRunes возвращает индекс первого вхождения needle в haystack
// или -1, если вхождения нет.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	idx := strings.Index(string(haystack), string(needle))
	if idx < 0 {
		return -1
	}
	return utf8.RuneCountInString(string(haystack)[:idx])
}

// collapseSpace заменяет цепочки пробельных символов одним пробелом.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
