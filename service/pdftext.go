package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextDecoder turns a document into its embedded text layer.
type TextDecoder interface {
	DecodeText(data []byte) (string, error)
}

// PDFTextDecoder reads the text layer of every page. Scanned documents
// without text yield an empty string.
type PDFTextDecoder struct{}

func NewPDFTextDecoder() *PDFTextDecoder {
	return &PDFTextDecoder{}
}

func (d *PDFTextDecoder) DecodeText(data []byte) (text string, err error) {
	// the pdf package panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to decode pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, content)
	}

	return strings.Join(pages, "\n"), nil
}
