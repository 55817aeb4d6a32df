// Пакет normalize — приведение клиентских полей к канонической форме.
//
// Ранние версии схемы допускали двойные имена полей (file_name/filename,
// content/binary_data). Нормализатор сводит обе пары к одному каноническому
// представлению, чтобы хранилище и поисковый движок никогда не ветвились
// по legacy-именам.
package normalize

import (
	"mime"
	"path/filepath"
	"strings"
)

// octetStream — generic MIME-тип, при котором тип выводится из расширения.
const octetStream = "application/octet-stream"

// FileName выбирает каноническое имя файла из пары (file_name, filename).
// Каноническое поле имеет приоритет; legacy-поле используется при пустом каноническом.
func FileName(fileName, legacyFilename string) string {
	if fileName != "" {
		return fileName
	}
	return legacyFilename
}

// Payload выбирает бинарное содержимое из пары (binary_data, content).
// При обоих заполненных предпочитается binary_data.
func Payload(binaryData, content []byte) []byte {
	if len(binaryData) > 0 {
		return binaryData
	}
	return content
}

// FileType возвращает канонический MIME-тип файла.
// При пустом или generic-типе тип выводится из расширения имени файла.
// Параметры типа (charset и т.п.) отбрасываются.
func FileType(declared, fileName string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != octetStream {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
		return strings.ToLower(declared)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt", ".md", ".log", ".csv":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	}

	if declared == "" {
		return octetStream
	}
	return declared
}

// Tags схлопывает дубликаты тегов, сохраняя порядок первого вхождения.
// Пустые теги и теги из одних пробелов отбрасываются.
func Tags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Category приводит категорию к канонической форме:
// обрезает пробелы, пустая строка означает отсутствие категории (nil).
func Category(category string) *string {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil
	}
	return &category
}
