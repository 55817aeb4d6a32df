// docx.go — экстрактор DOCX через github.com/fumiama/go-docx.
// Текст — конкатенация параграфов в порядке документа;
// метаданные — из docProps/core.xml (Dublin Core properties).
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	docxlib "github.com/fumiama/go-docx"
)

// extractDOCX извлекает текст и метаданные из DOCX-документа.
func extractDOCX(ctx context.Context, data []byte) (*Result, error) {
	doc, err := docxlib.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, ctxErr)
		}

		switch block := item.(type) {
		case *docxlib.Paragraph:
			if text := strings.TrimSpace(block.String()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		case *docxlib.Table:
			if text := strings.TrimSpace(block.String()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
	}

	return &Result{
		Text:     strings.Join(paragraphs, "\n"),
		Metadata: docxCoreProperties(data),
	}, nil
}

// coreProperties — docProps/core.xml (поля матчатся по локальным именам,
// пространства имён dc/dcterms/cp не важны для encoding/xml).
type coreProperties struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

// docxCoreProperties читает метаданные документа из docProps/core.xml.
// Отсутствующий или нечитаемый core.xml — не ошибка: метаданные опциональны.
func docxCoreProperties(data []byte) map[string]any {
	metadata := map[string]any{}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return metadata
	}

	for _, f := range zr.File {
		if f.Name != "docProps/core.xml" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return metadata
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return metadata
		}

		var props coreProperties
		if err := xml.Unmarshal(raw, &props); err != nil {
			return metadata
		}

		if props.Title != "" {
			metadata["title"] = props.Title
		}
		if props.Creator != "" {
			metadata["author"] = props.Creator
		}
		if props.Created != "" {
			metadata["creation_date"] = props.Created
		}
		if props.Modified != "" {
			metadata["modification_date"] = props.Modified
		}
		break
	}

	return metadata
}
