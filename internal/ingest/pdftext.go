package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts the text layer of a PDF, page by page. An interface
// so tests can feed synthetic text without real PDF bytes.
type PDFExtractor interface {
	ExtractText(data []byte) (string, error)
}

// RealPDFExtractor reads the embedded text layer. Scanned/image-only PDFs
// yield empty text, which the pipeline treats as "no usable rows".
type RealPDFExtractor struct{}

func NewRealPDFExtractor() *RealPDFExtractor {
	return &RealPDFExtractor{}
}

func (e *RealPDFExtractor) ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("no se pudo leer el PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// MockPDFExtractor returns predefined text, for tests.
type MockPDFExtractor struct {
	Text string
	Err  error
}

func (e *MockPDFExtractor) ExtractText(data []byte) (string, error) {
	return e.Text, e.Err
}
