package ocr

import (
	"bytes"
	"context"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// NativePDF reads the text layer of a PDF in-process. Scanned invoices
// without a text layer yield empty pages.
type NativePDF struct{}

// NewNativePDF creates a NativePDF extractor.
func NewNativePDF() *NativePDF {
	return &NativePDF{}
}

// ExtractPages returns the plain text of every page in order.
func (n *NativePDF) ExtractPages(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read PDF %s", path)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: open PDF %s", path)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ocr: native extract")
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: page %d of %s", i, path)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
